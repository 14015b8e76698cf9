package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/omninexus/internal/connector"
	"github.com/nhle/omninexus/internal/theme"
)

var (
	queryLimit int
	queryJSON  bool
)

var queryCmd = &cobra.Command{
	Use:   "query <connector-id>",
	Short: "Fetch records from a connector and print them",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "maximum records to fetch (0 = connector default)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print records as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	res, err := application.Query(cmd.Context(), args[0], connector.QueryParams{Limit: queryLimit})
	if err != nil {
		return err
	}

	if queryJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res.Records)
	}

	header(cmd, fmt.Sprintf("%s: %d records (%d processed, %d skipped)",
		args[0], len(res.Records), res.Processed, res.Skipped))
	for _, r := range res.Records {
		content, _ := r.Content()
		var b strings.Builder
		b.WriteString(r.SourceURI + "\n")
		if subject, ok := r.Payload["subject"].(string); ok && subject != "" {
			b.WriteString("subject: " + subject + "\n")
		}
		b.WriteString(theme.HelpStyle.Render(preview(content, 200)))
		cmd.Println(theme.RecordStyle.Render(b.String()))
	}
	return nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
