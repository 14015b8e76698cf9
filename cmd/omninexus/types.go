package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/omninexus/internal/theme"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List connector and agent types with their configuration keys",
	Args:  cobra.NoArgs,
	RunE:  runTypes,
}

func init() {
	rootCmd.AddCommand(typesCmd)
}

func runTypes(cmd *cobra.Command, _ []string) error {
	header(cmd, "Connector types")
	for _, t := range application.Connectors().Types() {
		schema, err := application.Connectors().Schema(t)
		if err != nil {
			return err
		}
		cmd.Println(theme.TypeLabelStyle(t).Render(t))
		for _, f := range schema {
			flags := string(f.Type)
			if f.Required {
				flags += ", required"
			} else if f.Default != nil {
				flags += fmt.Sprintf(", default %v", f.Default)
			}
			cmd.Printf("  %s %s\n", theme.KeyStyle.Render(f.Name), theme.HelpStyle.Render("("+flags+") "+f.Description))
		}
	}

	cmd.Println()
	header(cmd, "Agent types")
	for _, t := range application.Agents().Types() {
		cmd.Println("  " + t)
	}
	return nil
}
