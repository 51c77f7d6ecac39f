package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gmailward/gmailward/internal/google"
)

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to the mailbox and store the OAuth token",
		Long: `Run the OAuth consent flow: print the authorization URL, read the
authorization code from stdin, and persist the resulting token to the
configured token_file. Subsequent commands reuse and refresh it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			auth := google.NewFileAuthProvider(cfg.CredentialsFile, cfg.TokenFile, cfg.ScopeList())

			url, err := auth.AuthURL()
			if err != nil {
				return fmt.Errorf("failed to build authorization URL: %w", err)
			}
			fmt.Printf("Open the following URL in your browser:\n\n  %s\n\nAuthorization code: ", url)

			code, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read authorization code: %w", err)
			}
			if err := auth.Exchange(cmd.Context(), strings.TrimSpace(code)); err != nil {
				return fmt.Errorf("failed to exchange authorization code: %w", err)
			}
			fmt.Printf("Token stored in %s\n", cfg.TokenFile)
			return nil
		},
	}
}
