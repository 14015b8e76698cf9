package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/omninexus/internal/model"
	"github.com/nhle/omninexus/internal/theme"
)

var connectorSettings []string

var connectorsCmd = &cobra.Command{
	Use:     "connectors",
	Aliases: []string{"connector", "c"},
	Short:   "Manage connector instances",
}

var connectorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured connector instances",
	Args:  cobra.NoArgs,
	RunE:  runConnectorsList,
}

var connectorsAddCmd = &cobra.Command{
	Use:   "add <id> <type>",
	Short: "Validate and store a connector instance",
	Long: `Validates the configuration against the connector type's schema and
stores it. Settings are passed as repeated --set key=value flags:

	omninexus connectors add notes local_files --set path=~/notes --set recursive=true
	omninexus connectors add work imap --set server=imap.example.com --set username=alice`,
	Args: cobra.ExactArgs(2),
	RunE: runConnectorsAdd,
}

var connectorsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a stored connector instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.RemoveConnector(cmd.Context(), args[0]); err != nil {
			return err
		}
		cmd.Printf("Connector %s removed.\n", args[0])
		return nil
	},
}

var connectorsInfoCmd = &cobra.Command{
	Use:   "info <id>",
	Short: "Show a connector's metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnectorsInfo,
}

var connectorsAllowCmd = &cobra.Command{
	Use:   "allow <id> <agent-type>",
	Short: "Allow an agent type to consume a connector's records",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.AllowAgent(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		cmd.Printf("Agent %s allowed for %s.\n", args[1], args[0])
		return nil
	},
}

var connectorsDisallowCmd = &cobra.Command{
	Use:   "disallow <id> <agent-type>",
	Short: "Revoke an agent type's access to a connector",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.DisallowAgent(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		cmd.Printf("Agent %s disallowed for %s.\n", args[1], args[0])
		return nil
	},
}

func init() {
	connectorsAddCmd.Flags().StringArrayVar(&connectorSettings, "set", nil, "configuration key=value (repeatable)")

	connectorsCmd.AddCommand(
		connectorsListCmd,
		connectorsAddCmd,
		connectorsRemoveCmd,
		connectorsInfoCmd,
		connectorsAllowCmd,
		connectorsDisallowCmd,
	)
	rootCmd.AddCommand(connectorsCmd)
}

func runConnectorsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfgs, err := application.ConnectorConfigs(ctx)
	if err != nil {
		return err
	}
	if len(cfgs) == 0 {
		cmd.Println(theme.HelpStyle.Render("No connectors configured. Add one with 'omninexus connectors add'."))
		return nil
	}

	ids := make([]string, 0, len(cfgs))
	for id := range cfgs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	header(cmd, "Connectors")
	for _, id := range ids {
		allowed, err := application.AllowedAgents(ctx, id)
		if err != nil {
			return err
		}
		agents := "none"
		if len(allowed) > 0 {
			agents = strings.Join(allowed, ", ")
		}
		t := cfgs[id].Type()
		cmd.Printf("%s %s %s\n",
			theme.KeyStyle.Render(id),
			theme.TypeLabelStyle(t).Render(t),
			theme.HelpStyle.Render("agents: "+agents))
	}
	return nil
}

func runConnectorsAdd(cmd *cobra.Command, args []string) error {
	cfg, err := parseSettings(args[1], connectorSettings)
	if err != nil {
		return err
	}
	if err := application.AddConnector(cmd.Context(), args[0], cfg); err != nil {
		return err
	}
	cmd.Printf("Connector %s (%s) stored.\n", args[0], args[1])
	return nil
}

func parseSettings(typeName string, settings []string) (model.ConnectorConfig, error) {
	cfg := model.ConnectorConfig{model.TypeKey: typeName}
	for _, s := range settings {
		key, value, ok := strings.Cut(s, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid setting %q: want key=value", s)
		}
		if key == model.TypeKey {
			return nil, fmt.Errorf("set the type as the second argument, not with --set")
		}
		cfg[key] = value
	}
	return cfg, nil
}

func runConnectorsInfo(cmd *cobra.Command, args []string) error {
	c, err := application.BuildConnector(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer c.Disconnect()

	meta := c.GetMetadata()
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	header(cmd, "Connector "+c.ID())
	for _, k := range keys {
		v := meta[k]
		if k == "status" {
			v = theme.StateStyle(fmt.Sprint(v)).Render(fmt.Sprint(v))
		}
		keyValue(cmd, k, v)
	}
	return nil
}
