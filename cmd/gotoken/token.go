package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and verify tokens with the configured key",
	}
	cmd.AddCommand(newTokenIssueCmd(a), newTokenVerifyCmd(a))
	return cmd
}

func newTokenIssueCmd(a *app) *cobra.Command {
	var (
		subject string
		roles   []string
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a token for a subject without a password check",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(subject) == "" {
				return errors.New("--subject is required")
			}
			keys, err := buildKeyStore(a.cfg.Keys, a.logger)
			if err != nil {
				return err
			}
			issuer, err := jwt.NewIssuer(keys, nil, jwt.IssuerConfig{
				Lifetime: a.cfg.Token.Lifetime,
				Issuer:   a.cfg.Token.Issuer,
				Audience: a.cfg.Token.Audience,
			})
			if err != nil {
				return err
			}
			tok, err := issuer.Issue(jwt.Identity{Subject: subject, Roles: roles})
			if err != nil {
				return err
			}
			a.logger.Debug("token issued", zap.String("kid", tok.KeyID), zap.String("jti", tok.ID))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok.Raw)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject (user id)")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to include; repeatable")
	return cmd
}

func newTokenVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Verify a token and print its identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := buildKeyStore(a.cfg.Keys, a.logger)
			if err != nil {
				return err
			}
			skew := a.cfg.Token.Skew
			if skew == 0 {
				skew = jwt.NoSkew
			}
			verifier, err := jwt.NewVerifier(keys, nil, jwt.VerifierConfig{
				Skew:     skew,
				Issuer:   a.cfg.Token.Issuer,
				Audience: a.cfg.Token.Audience,
			})
			if err != nil {
				return err
			}
			id, err := verifier.Verify(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"subject":   id.Subject,
				"roles":     id.Roles,
				"issued_at": id.IssuedAt,
			})
		},
	}
}
