package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/omninexus/internal/agent"
)

var runParams []string

var runCmd = &cobra.Command{
	Use:   "run <agent-type> <connector-id>",
	Short: "Run an agent over a connector's records",
	Long: `Fetches records from the connector and feeds them to the agent. The
connector must allow the agent type (see 'omninexus connectors allow').

	omninexus run keyword_extractor notes --param num_keywords=5`,
	Args: cobra.ExactArgs(2),
	RunE: runAgent,
}

func init() {
	runCmd.Flags().StringArrayVar(&runParams, "param", nil, "integer agent parameter key=value (repeatable)")
	rootCmd.AddCommand(runCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	params := agent.Params{}
	for _, p := range runParams {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("invalid parameter %q: want key=value", p)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("parameter %s must be an integer: %w", key, err)
		}
		params[strings.TrimSpace(key)] = n
	}

	out, err := application.RunAgent(cmd.Context(), args[0], args[1], params)
	if err != nil {
		return err
	}

	header(cmd, args[0]+" on "+args[1])
	keyValue(cmd, "items_processed", out["items_processed"])
	keyValue(cmd, "items_skipped", out["items_skipped"])
	if total, ok := out["total_words"]; ok {
		keyValue(cmd, "total_words", total)
	}
	if kws, ok := out["keywords"].([]agent.Keyword); ok {
		for _, k := range kws {
			keyValue(cmd, k.Word, k.Score)
		}
	}
	return nil
}
