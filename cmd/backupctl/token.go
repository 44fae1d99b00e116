package main

import (
	"fmt"

	"transit-console/internal/backup/adapter/security"
	"transit-console/internal/backup/config"

	"github.com/spf13/cobra"
)

var tokenRole string

var tokenCmd = &cobra.Command{
	Use:   "token {operator id}",
	Short: "Issues an API token for an operator",
	Long: `Issues a signed API token for an operator. The admin API only
accepts tokens carrying the super operator role (SUPER_OPERATOR_ROLE).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		role := tokenRole
		if role == "" {
			role = cfg.Auth.SuperOperatorRole
		}
		tokens, err := security.NewJWTokenService(security.TokenConfig{
			SecretKey: cfg.Auth.JWTSecretKey,
			Issuer:    cfg.Auth.JWTIssuer,
			TTL:       cfg.Auth.TokenTTL,
		})
		if err != nil {
			return err
		}
		token, err := tokens.GenerateToken(args[0], role)
		if err != nil {
			return fmt.Errorf("signing token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func initToken() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", "", "Role claim (default: SUPER_OPERATOR_ROLE)")
}
