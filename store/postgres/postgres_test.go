package postgres

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMapInsertError(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "gotoken_users_identifier_key"}
	require.ErrorIs(t, mapInsertError(dup), goToken.ErrProviderDuplicateIdentifier)

	other := &pgconn.PgError{Code: "23502"}
	require.Same(t, error(other), mapInsertError(other))

	plain := errors.New("conn reset")
	require.Equal(t, plain, mapInsertError(plain))
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	b, err := migrationsFS.ReadFile(names[0])
	require.NoError(t, err)
	require.Contains(t, string(b), "gotoken_users")
	require.Contains(t, string(b), "LOWER(identifier)")
}

// TestStoreAgainstPostgres runs when GOTOKEN_TEST_POSTGRES_DSN points at a
// disposable database.
func TestStoreAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("GOTOKEN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GOTOKEN_TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := Open(ctx, Config{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))

	identifier := "user-" + strings.ReplaceAll(uuid.NewString(), "-", "") + "@example.com"
	created, err := s.CreateUser(ctx, goToken.CreateUserInput{
		Identifier:   identifier,
		PasswordHash: "h1",
		Roles:        []string{"reader"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.UserID)

	_, err = s.CreateUser(ctx, goToken.CreateUserInput{Identifier: strings.ToUpper(identifier), PasswordHash: "h2"})
	require.ErrorIs(t, err, goToken.ErrProviderDuplicateIdentifier)

	got, err := s.GetUserByIdentifier(ctx, strings.ToUpper(identifier))
	require.NoError(t, err)
	require.Equal(t, created.UserID, got.UserID)
	require.Equal(t, []string{"reader"}, got.Roles)

	require.NoError(t, s.UpdatePasswordHash(ctx, created.UserID, "h3"))
	got, err = s.GetUserByIdentifier(ctx, identifier)
	require.NoError(t, err)
	require.Equal(t, "h3", got.PasswordHash)

	require.ErrorIs(t, s.UpdatePasswordHash(ctx, uuid.NewString(), "h4"), goToken.ErrUserNotFound)

	_, err = s.GetUserByIdentifier(ctx, "missing-"+identifier)
	require.ErrorIs(t, err, goToken.ErrUserNotFound)
}
