package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
)

var (
	tokenID    string
	tokenRole  string
	tokenEmail string
	tokenTTL   int
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a bearer token for local testing",
	Long: `Sign a bearer token with AUTH_JWT_SECRET. Production tokens come from the
platform's auth service; this exists for local development and smoke tests.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if tokenID == "" {
			return errors.New("--id is required")
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, tokenTTL)
		signed, expiresAt, err := tokens.GenerateToken(domain.Principal{
			ID:    tokenID,
			Role:  domain.ParseRole(tokenRole),
			Email: tokenEmail,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenID, "id", "", "principal id (subject)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(domain.RoleVendor), "role: user, admin or vendor")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "principal email")
	tokenCmd.Flags().IntVar(&tokenTTL, "ttl", 60, "lifetime in minutes")
	rootCmd.AddCommand(tokenCmd)
}
