// Package credentials implements the credentials command group of the CLI.
package credentials

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	plugctx "ocm.software/open-component-model/plughost/internal/context"
	"ocm.software/open-component-model/plughost/internal/credentials"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Manage secrets stored by the active credential manager",
		Long: `Manage the secrets of accounts with the active credential manager.

The built-in credential manager keeps secrets in the settings directory below
the plughost home. A plugin selected with the CredentialManager setting replaces it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
	cmd.AddCommand(newGet(), newSet(), newDelete())
	return cmd
}

func newGet() *cobra.Command {
	return &cobra.Command{
		Use:               "get <account>",
		Short:             "Print the secret of an account",
		Args:              cobra.ExactArgs(1),
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager(cmd)
			if err != nil {
				return err
			}
			secret, err := m.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
}

func newSet() *cobra.Command {
	return &cobra.Command{
		Use:   "set <account>",
		Short: "Store the secret of an account read from standard input",
		Example: `  echo "$TOKEN" | plughost credentials set npm.acme.example`,
		Args:              cobra.ExactArgs(1),
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager(cmd)
			if err != nil {
				return err
			}
			reader := bufio.NewReader(cmd.InOrStdin())
			line, err := reader.ReadString('\n')
			secret := strings.TrimRight(line, "\r\n")
			if secret == "" {
				if err != nil {
					return fmt.Errorf("could not read the secret from standard input: %w", err)
				}
				return fmt.Errorf("the secret of %q is empty", args[0])
			}
			return m.Save(cmd.Context(), args[0], secret)
		},
	}
}

func newDelete() *cobra.Command {
	return &cobra.Command{
		Use:               "delete <account>",
		Aliases:           []string{"rm"},
		Short:             "Delete the secret of an account",
		Args:              cobra.ExactArgs(1),
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager(cmd)
			if err != nil {
				return err
			}
			return m.Delete(cmd.Context(), args[0])
		},
	}
}

func manager(cmd *cobra.Command) (credentials.Manager, error) {
	m := plugctx.FromContext(cmd.Context()).Credentials()
	if m == nil {
		return nil, fmt.Errorf("credential manager is not available")
	}
	return m, nil
}
