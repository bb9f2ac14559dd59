package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/keepsake/internal/auth"
	"github.com/sakif/keepsake/internal/service"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

// tokenCmd mints a bearer token signed with the configured secret, for
// local development and smoke tests against a running server.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed bearer token for a user id",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !service.IsUUID(tokenUser) {
			return errors.New("--user must be a UUID")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
		if err != nil {
			return err
		}

		token, err := tokens.Generate(tokenUser, tokenTTL)
		if err != nil {
			return fmt.Errorf("signing token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "user id (UUID) to put in the subject claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", auth.DefaultTokenTTL, "token lifetime")
	tokenCmd.MarkFlagRequired("user")
}
