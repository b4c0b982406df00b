package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"github.com/xela07ax/spaceai-agent-portal/internal/infra/auth"
)

var (
	tokenKeyPath    string
	tokenEmail      string
	tokenTTL        time.Duration
	tokenUnverified bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a development identity token",
	Long: `token signs an RS256 identity token with the given private key. The portal
accepts it when configured with the matching public key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(tokenKeyPath)
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
		key, err := auth.ParseRSAPrivateKey(data)
		if err != nil {
			return err
		}

		verified := !tokenUnverified
		now := time.Now()
		token, err := auth.IssueToken(key, domain.IdentityClaims{
			Email:         tokenEmail,
			EmailVerified: &verified,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   tokenEmail,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			},
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenKeyPath, "key", "", "Path to the RSA private key (PEM)")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
	tokenCmd.Flags().BoolVar(&tokenUnverified, "unverified", false, "Set email_verified=false")
	_ = tokenCmd.MarkFlagRequired("key")
	_ = tokenCmd.MarkFlagRequired("email")
}
