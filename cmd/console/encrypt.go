package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"opsconsole/internal/domain"
	"opsconsole/internal/infra/config"
)

func newEncryptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt [token]",
		Short: "Encrypt a Gateway token for the config file",
		Long: `encrypt prints an "enc:" value to paste into a profile's token field.
The key is read from ` + config.EnvConfigKey + `; the token is read from the
argument or, when omitted, from the first line of stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase := os.Getenv(config.EnvConfigKey)
			if passphrase == "" {
				return domain.NewDomainError("encrypt", domain.ErrInvalidInput, config.EnvConfigKey+" is not set")
			}

			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = line
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return domain.NewDomainError("encrypt", domain.ErrInvalidInput, "empty token")
			}

			enc, err := config.EncryptValue(token, passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.EncPrefix+enc)
			return nil
		},
	}
}
