package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-premerge/internal/auth"
	"github.com/spec-kit/ticket-premerge/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token",
	Long:  `Sign a bearer token for the HTTP API with AUTH_JWT_SECRET.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		roleName, _ := cmd.Flags().GetString("role")

		role, ok := auth.ParseRole(roleName)
		if !ok {
			return fmt.Errorf("unknown role %q (want operator or viewer)", roleName)
		}

		// Zendesk credentials are not needed here; only the signing secret is checked.
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.ValidateAuth(); err != nil {
			return err
		}

		token, expiresAt, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes).
			GenerateToken(subject, role)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("subject", "", "Who the token is issued to")
	tokenCmd.Flags().String("role", string(auth.RoleOperator), "operator or viewer")
	_ = tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd)
}
