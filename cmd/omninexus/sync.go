package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appsync "github.com/nhle/omninexus/internal/sync"
	"github.com/nhle/omninexus/internal/theme"
)

var syncOnce bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Poll every connector and store fetched records",
	Long: `Polls every configured connector at the configured interval, storing
fetched records and a history entry per run, until interrupted.
With --once, every connector is polled a single time.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncOnce, "once", false, "poll each connector once and exit")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := application.NewPoller(ctx)
	if err != nil {
		return err
	}
	statuses := p.Statuses()
	if len(statuses) == 0 {
		cmd.Println(theme.HelpStyle.Render("No valid connectors to sync."))
		return nil
	}

	if syncOnce {
		for _, r := range p.RunAll(ctx) {
			printResult(cmd, r)
		}
		return nil
	}

	p.Start(ctx)
	defer p.Stop()

	for {
		select {
		case <-ctx.Done():
			cmd.Println(theme.HelpStyle.Render("Stopping..."))
			return nil
		case r := <-p.Results():
			printResult(cmd, r)
		}
	}
}

func printResult(cmd *cobra.Command, r appsync.SyncResult) {
	switch {
	case r.AuthError != nil:
		cmd.Println(theme.ErrorStyle.Render(r.AuthError.Message))
	case r.Error != nil:
		cmd.Printf("%s %s %v\n", theme.KeyStyle.Render(r.ConnectorID),
			theme.StateStyle("error").Render("error"), r.Error)
	default:
		cmd.Printf("%s %s %d records (%d processed, %d skipped)\n", theme.KeyStyle.Render(r.ConnectorID),
			theme.StateStyle("idle").Render("ok"), len(r.Records), r.Processed, r.Skipped)
	}
}
