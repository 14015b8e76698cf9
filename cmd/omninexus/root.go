package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nhle/omninexus/internal/app"
	"github.com/nhle/omninexus/internal/credential"
	"github.com/nhle/omninexus/internal/logger"
	"github.com/nhle/omninexus/internal/model"
	"github.com/nhle/omninexus/internal/store"
	"github.com/nhle/omninexus/internal/theme"
)

var (
	configPath string
	envFile    string
	verbose    bool

	application *app.App
	secrets     *credential.KeyringStore
	db          *store.SQLiteStore
)

var rootCmd = &cobra.Command{
	Use:   "omninexus",
	Short: "Pull content from local folders and mailboxes into normalized records",
	Long: `omninexus connects to content sources (local directories, IMAP mailboxes),
normalizes what it reads into records, and feeds those records to text agents.

Mail passwords are never read from configuration; store them with
'omninexus secret set <server> <username>'.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log := logger.New(cmd.ErrOrStderr(), verbose || cfg.Log.Verbose)

	if dir := filepath.Dir(cfg.Datastore.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating datastore directory %s: %w", dir, err)
		}
	}
	db, err = store.NewSQLiteStore(cfg.Datastore.Path)
	if err != nil {
		return err
	}

	secrets = credential.NewKeyringStore(cfg.Credentials.FileDir)
	application = app.New(cfg, db, secrets, log)
	log.Debug("config %s, datastore %s", configPath, cfg.Datastore.Path)
	return nil
}

func teardown(*cobra.Command, []string) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func header(cmd *cobra.Command, title string) {
	cmd.Println(theme.HeaderStyle.Render(title))
}

func keyValue(cmd *cobra.Command, key string, value any) {
	cmd.Printf("%s %v\n", theme.KeyStyle.Render(key), value)
}

func errorLine(err error) string {
	return theme.ErrorStyle.Render("error:") + " " + err.Error()
}
