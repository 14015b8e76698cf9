package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/omninexus/internal/credential"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage mail account secrets in the system keyring",
}

var secretSetCmd = &cobra.Command{
	Use:   "set <server> <username>",
	Short: "Store a mail account secret read from standard input",
	Long: `Reads the secret from the first line of standard input so it never
appears in shell history or process listings:

	omninexus secret set imap.example.com alice@example.com < secret.txt`,
	Args: cobra.ExactArgs(2),
	RunE: runSecretSet,
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete <server> <username>",
	Short: "Remove a stored mail account secret",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := secrets.DeleteSecret(credential.MailService(args[0]), args[1]); err != nil {
			return err
		}
		cmd.Printf("Secret for %s on %s removed.\n", args[1], args[0])
		return nil
	},
}

func init() {
	secretCmd.AddCommand(secretSetCmd, secretDeleteCmd)
	rootCmd.AddCommand(secretCmd)
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading secret from stdin: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return errors.New("empty secret on stdin")
	}

	if err := secrets.SetSecret(credential.MailService(args[0]), args[1], secret); err != nil {
		return err
	}
	cmd.Printf("Secret for %s on %s stored.\n", args[1], args[0])
	return nil
}
