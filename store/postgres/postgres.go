// Package postgres is a goToken.UserProvider backed by PostgreSQL through
// pgx. Identifiers are unique case-insensitively.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.up.sql
var migrationsFS embed.FS

const uniqueViolation = "23505"

// Config tunes the connection pool. Zero values keep pgx defaults.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Querier is the subset of *pgxpool.Pool the store uses.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements goToken.UserProvider.
type Store struct {
	db   Querier
	pool *pgxpool.Pool
}

var _ goToken.UserProvider = (*Store)(nil)

// Open connects a pool and pings it.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{db: pool, pool: pool}, nil
}

// New wraps an existing querier, such as a pool or a transaction.
func New(db Querier) *Store {
	return &Store{db: db}
}

// Close closes the pool opened by [Open]. It is a no-op for stores built with [New].
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Migrate applies the embedded schema in file-name order. Every statement is
// idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := migrationsFS.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) GetUserByIdentifier(ctx context.Context, identifier string) (goToken.UserRecord, error) {
	const q = `
SELECT id::text, identifier, password_hash, roles, created_at
FROM gotoken_users
WHERE LOWER(identifier) = LOWER($1)`

	var u goToken.UserRecord
	err := s.db.QueryRow(ctx, q, identifier).
		Scan(&u.UserID, &u.Identifier, &u.PasswordHash, &u.Roles, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return goToken.UserRecord{}, goToken.ErrUserNotFound
		}
		return goToken.UserRecord{}, err
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, in goToken.CreateUserInput) (goToken.UserRecord, error) {
	const q = `
INSERT INTO gotoken_users (id, identifier, password_hash, roles)
VALUES ($1, $2, $3, $4)
RETURNING id::text, identifier, password_hash, roles, created_at`

	roles := in.Roles
	if roles == nil {
		roles = []string{}
	}

	var u goToken.UserRecord
	err := s.db.QueryRow(ctx, q, uuid.New(), in.Identifier, in.PasswordHash, roles).
		Scan(&u.UserID, &u.Identifier, &u.PasswordHash, &u.Roles, &u.CreatedAt)
	if err != nil {
		return goToken.UserRecord{}, mapInsertError(err)
	}
	return u, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	const q = `UPDATE gotoken_users SET password_hash = $2, updated_at = now() WHERE id = $1`

	tag, err := s.db.Exec(ctx, q, userID, newHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return goToken.ErrUserNotFound
	}
	return nil
}

func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", goToken.ErrProviderDuplicateIdentifier, pgErr.ConstraintName)
	}
	return err
}
