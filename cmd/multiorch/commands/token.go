package commands

import (
	"fmt"
	"time"

	"github.com/biodoia/multiorch/pkg/auth"
	"github.com/biodoia/multiorch/pkg/config"
	"github.com/spf13/cobra"
)

// TokenCmd genera un token JWT di sviluppo
var TokenCmd = &cobra.Command{
	Use:   "token [user-id]",
	Short: "Mint a JWT for calling the conversation API",
	Long: `Sign an access token with auth.jwt_secret for the given user id.
Intended for local development and smoke tests.`,
	Example: `  multiorch token alice --email alice@example.com --ttl 24h`,
	Args:    cobra.ExactArgs(1),
	RunE:    runToken,
}

var (
	tokenEmail string
	tokenTTL   time.Duration
)

func init() {
	TokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email claim")
	TokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 7*24*time.Hour, "Token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not set")
	}

	jm := auth.NewJWTManager(auth.JWTConfig{
		SecretKey:      cfg.Auth.JWTSecret,
		Issuer:         cfg.Auth.Issuer,
		AccessDuration: tokenTTL,
	})

	token, err := jm.GenerateAccessToken(args[0], tokenEmail)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
