package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newKeysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage signing keys",
	}
	cmd.AddCommand(newKeysGenerateCmd(), newKeysJWKSCmd(a))
	return cmd
}

func newKeysGenerateCmd() *cobra.Command {
	var (
		alg string
		out string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an Ed25519 private key (PEM) or an HS256 secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.OpenFile(out, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return generateKey(w, alg)
		},
	}
	cmd.Flags().StringVar(&alg, "alg", "EdDSA", "EdDSA or HS256")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout (refuses to overwrite)")
	return cmd
}

func generateKey(w io.Writer, alg string) error {
	switch strings.ToUpper(alg) {
	case "EDDSA":
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return err
		}
		der, err := x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return err
		}
		return pem.Encode(w, &pem.Block{Type: "PRIVATE KEY", Bytes: der})
	case "HS256":
		secret := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, secret); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w, base64.RawURLEncoding.EncodeToString(secret))
		return err
	default:
		return fmt.Errorf("unsupported algorithm %q", alg)
	}
}

func newKeysJWKSCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "jwks",
		Short: "Print the public key set for the configured key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := buildKeyStore(a.cfg.Keys, a.logger)
			if err != nil {
				return err
			}
			body, err := keys.JWKS()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return err
		},
	}
}
