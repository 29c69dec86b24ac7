package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"velora-scenario-service/internal/auth"
	"velora-scenario-service/internal/config"
)

// NewTokenCmd mints a signed player token for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a player token signed with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			authority, err := auth.NewJWTAuthority(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			token, err := authority.Issue(userID, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to put in the token subject")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
