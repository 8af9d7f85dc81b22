package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/internal/fileconfig"
	"github.com/MrEthical07/goToken/keystore"
	"github.com/MrEthical07/goToken/store/memory"
	"github.com/MrEthical07/goToken/store/postgres"
	"go.uber.org/zap"
)

// loadSigningKey builds the configured key. An EdDSA key without a file is
// generated fresh and lives only as long as the process.
func loadSigningKey(cfg fileconfig.KeysConfig, logger *zap.Logger) (*keystore.SigningKey, error) {
	switch strings.ToUpper(cfg.Algorithm) {
	case "HS256":
		return keystore.NewHMACKey(cfg.ID, []byte(cfg.Secret), keystore.Window{})
	default:
		if cfg.PrivateKeyFile == "" {
			logger.Warn("no private key file configured; generating an ephemeral Ed25519 key",
				zap.String("kid", cfg.ID))
			return keystore.GenerateEd25519(cfg.ID, keystore.Window{})
		}
		raw, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		priv, err := keystore.ParseEd25519PrivateKey(raw)
		if err != nil {
			return nil, err
		}
		return keystore.NewEd25519Key(cfg.ID, priv, keystore.Window{})
	}
}

func buildKeyStore(cfg fileconfig.KeysConfig, logger *zap.Logger) (*keystore.Store, error) {
	keys := keystore.New(keystore.Options{Logger: logger.Named("keystore")})
	key, err := loadSigningKey(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := keys.Rotate(key); err != nil {
		return nil, err
	}
	return keys, nil
}

// buildUserProvider returns the configured store and a function releasing it.
func buildUserProvider(ctx context.Context, cfg fileconfig.StoreConfig, logger *zap.Logger) (goToken.UserProvider, func(), error) {
	if cfg.Kind != "postgres" {
		logger.Info("using in-memory user store; users are lost on restart")
		return memory.New(), func() {}, nil
	}

	store, err := postgres.Open(ctx, postgres.Config{
		DSN:             cfg.Postgres.DSN,
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Postgres.Migrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
	}
	logger.Info("postgres user store ready")
	return store, store.Close, nil
}
