package main

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/ehr/reconciler/internal/platform/auth"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with AUTH_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := requireFlag(cmd, "subject")
			if err != nil {
				return err
			}
			roles, _ := cmd.Flags().GetStringSlice("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.AuthEnabled() {
				return fmt.Errorf("AUTH_SECRET is not set")
			}

			now := time.Now()
			tok, err := auth.IssueToken(auth.JWTConfig{
				Issuer:     cfg.AuthIssuer,
				Audience:   cfg.AuthAudience,
				SigningKey: []byte(cfg.AuthSecret),
			}, subject, roles, jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("subject", "", "Token subject")
	cmd.Flags().StringSlice("role", []string{auth.RoleReader}, "Role to grant; repeat for several")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	return cmd
}
