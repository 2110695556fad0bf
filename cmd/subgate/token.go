package main

import (
	"fmt"

	"github.com/meterly/subgate/adapters/auth"
	"github.com/meterly/subgate/config"
	"github.com/spf13/cobra"
)

var (
	tokenSubject    string
	tokenBillingRef string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for testing",
	Long: `Mint a signed bearer token using the configured JWT secret.

The billing reference links the token's holder to a customer at the
billing provider. A token without one always resolves to the
not-paying outcome.

Examples:
  subgate token --subject user_1 --billing-ref org_42
  subgate token --subject admin`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "token subject (required)")
	tokenCmd.Flags().StringVar(&tokenBillingRef, "billing-ref", "", "billing customer reference")
	tokenCmd.MarkFlagRequired("subject")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	token, expiresAt, err := tokens.GenerateToken(tokenSubject, tokenBillingRef)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	fmt.Println(token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires: %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}
