package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrEthical07/goToken/keystore"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestKeysGenerateEd25519IsParseable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, generateKey(&buf, "EdDSA"))

	priv, err := keystore.ParseEd25519PrivateKey(buf.Bytes())
	require.NoError(t, err)
	_, err = keystore.NewEd25519Key("k", priv, keystore.Window{})
	require.NoError(t, err)
}

func TestKeysGenerateRejectsUnknownAlgorithm(t *testing.T) {
	require.Error(t, generateKey(&bytes.Buffer{}, "RS256"))
}

func TestTokenIssueAndVerifyWithKeyFile(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "signing.pem")
	_, err := run(t, "keys", "generate", "--out", keyFile)
	require.NoError(t, err)
	t.Setenv("GOTOKEN_PRIVATE_KEY_FILE", keyFile)
	t.Setenv("GOTOKEN_LOG_LEVEL", "error")

	raw, err := run(t, "token", "issue", "--subject", "user-1", "--role", "admin", "--role", "audit")
	require.NoError(t, err)
	raw = strings.TrimSpace(raw)
	require.Equal(t, 2, strings.Count(raw, "."))

	out, err := run(t, "token", "verify", raw)
	require.NoError(t, err)

	var got struct {
		Subject string   `json:"subject"`
		Roles   []string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, []string{"admin", "audit"}, got.Roles)
}

func TestTokenVerifyRejectsForeignKey(t *testing.T) {
	t.Setenv("GOTOKEN_KEY_ALGORITHM", "HS256")
	t.Setenv("GOTOKEN_HMAC_SECRET", strings.Repeat("a", 32))
	t.Setenv("GOTOKEN_LOG_LEVEL", "error")
	raw, err := run(t, "token", "issue", "--subject", "user-2")
	require.NoError(t, err)

	t.Setenv("GOTOKEN_HMAC_SECRET", strings.Repeat("b", 32))
	_, err = run(t, "token", "verify", strings.TrimSpace(raw))
	require.ErrorContains(t, err, "token rejected")
}

func TestKeysGenerateRefusesOverwrite(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "exists.pem")
	require.NoError(t, os.WriteFile(keyFile, []byte("x"), 0o600))
	_, err := run(t, "keys", "generate", "--out", keyFile)
	require.Error(t, err)
}

func TestKeysJWKSPublishesConfiguredKey(t *testing.T) {
	t.Setenv("GOTOKEN_KEY_ID", "published")
	t.Setenv("GOTOKEN_LOG_LEVEL", "error")
	out, err := run(t, "keys", "jwks")
	require.NoError(t, err)
	require.Contains(t, out, `"kid":"published"`)
}
