package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides
// (e.g. OMNINEXUS_LOG_VERBOSE=true).
const EnvPrefix = "OMNINEXUS"

// DatastoreConfig holds settings for the local SQLite datastore.
type DatastoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// CredentialsConfig holds settings for the credential store.
type CredentialsConfig struct {
	// FileDir is used by the encrypted-file keyring backend when no
	// OS keychain is available.
	FileDir string `mapstructure:"file_dir" yaml:"file_dir"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
}

// SyncConfig holds orchestration settings for background polling.
type SyncConfig struct {
	TimeoutSec  int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Datastore   DatastoreConfig   `mapstructure:"datastore" yaml:"datastore"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Sync        SyncConfig        `mapstructure:"sync" yaml:"sync"`

	// Connectors maps a connector instance ID to its configuration.
	// Viper lower-cases map keys, so instance IDs are case-insensitive.
	Connectors map[string]ConnectorConfig `mapstructure:"-" yaml:"connectors"`
}

// DefaultConfigDir returns ~/.config/omninexus, or the working directory
// when the home directory cannot be determined.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "omninexus")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := DefaultConfigDir()
	return &AppConfig{
		Datastore:   DatastoreConfig{Path: filepath.Join(dir, "omninexus.db")},
		Credentials: CredentialsConfig{FileDir: filepath.Join(dir, "credentials")},
		Sync: SyncConfig{
			TimeoutSec:  60,
			IntervalSec: 300,
		},
		Connectors: map[string]ConnectorConfig{},
	}
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultAppConfig()
	v.SetDefault("datastore.path", def.Datastore.Path)
	v.SetDefault("credentials.file_dir", def.Credentials.FileDir)
	v.SetDefault("log.verbose", false)
	v.SetDefault("sync.timeout_sec", def.Sync.TimeoutSec)
	v.SetDefault("sync.interval_sec", def.Sync.IntervalSec)
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults (plus environment overrides) are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	for id, raw := range v.GetStringMap("connectors") {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parsing config %s: connector %q is not a map", path, id)
		}
		cfg.Connectors[id] = ConnectorConfig(m)
	}

	if cfg.Sync.TimeoutSec <= 0 {
		cfg.Sync.TimeoutSec = 60
	}
	if cfg.Sync.IntervalSec <= 0 {
		cfg.Sync.IntervalSec = 300
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("datastore", map[string]any{"path": cfg.Datastore.Path})
	v.Set("credentials", map[string]any{"file_dir": cfg.Credentials.FileDir})
	v.Set("log", map[string]any{"verbose": cfg.Log.Verbose})
	v.Set("sync", map[string]any{
		"timeout_sec":  cfg.Sync.TimeoutSec,
		"interval_sec": cfg.Sync.IntervalSec,
	})

	connectors := make(map[string]any, len(cfg.Connectors))
	for id, c := range cfg.Connectors {
		connectors[id] = map[string]any(c)
	}
	v.Set("connectors", connectors)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
