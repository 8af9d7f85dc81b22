package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/keystore"
	"github.com/stretchr/testify/require"
)

func TestCreateAndLookup(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateUser(ctx, goToken.CreateUserInput{
		Identifier:   "Alice@Example.com",
		PasswordHash: "h1",
		Roles:        []string{"reader"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.UserID)
	require.False(t, created.CreatedAt.IsZero())

	got, err := s.GetUserByIdentifier(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, created, got)

	got.Roles[0] = "mutated"
	again, err := s.GetUserByIdentifier(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "reader", again.Roles[0])
}

func TestDuplicateAndMissing(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateUser(ctx, goToken.CreateUserInput{Identifier: "bob", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, goToken.CreateUserInput{Identifier: " BOB ", PasswordHash: "h"})
	require.ErrorIs(t, err, goToken.ErrProviderDuplicateIdentifier)

	_, err = s.GetUserByIdentifier(ctx, "carol")
	require.ErrorIs(t, err, goToken.ErrUserNotFound)

	require.ErrorIs(t, s.UpdatePasswordHash(ctx, "missing", "h2"), goToken.ErrUserNotFound)
}

func TestUpdatePasswordHash(t *testing.T) {
	s := New()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, goToken.CreateUserInput{Identifier: "dave", PasswordHash: "old"})
	require.NoError(t, err)
	require.NoError(t, s.UpdatePasswordHash(ctx, u.UserID, "new"))

	got, err := s.GetUserByIdentifier(ctx, "dave")
	require.NoError(t, err)
	require.Equal(t, "new", got.PasswordHash)
}

func TestConcurrentCreateSameIdentifier(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateUser(ctx, goToken.CreateUserInput{Identifier: "race", PasswordHash: fmt.Sprint(i)})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, 1, s.Len())
}

func TestEngineRegisterLoginRoundTrip(t *testing.T) {
	keys := keystore.New(keystore.Options{})
	key, err := keystore.GenerateEd25519("k1", keystore.Window{})
	require.NoError(t, err)
	require.NoError(t, keys.Rotate(key))

	cfg := goToken.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.RateLimit.Enabled = false

	engine, err := goToken.New().WithConfig(cfg).WithKeyStore(keys).WithUserProvider(New()).Build()
	require.NoError(t, err)
	defer engine.Close()

	ctx := context.Background()
	user, err := engine.Register(ctx, goToken.RegisterRequest{Identifier: "erin", Password: "a-long-enough-secret", Roles: []string{"ops"}})
	require.NoError(t, err)

	tok, err := engine.Login(ctx, "ERIN", "a-long-enough-secret")
	require.NoError(t, err)

	id, err := engine.Authenticate(ctx, tok.Raw)
	require.NoError(t, err)
	require.Equal(t, user.UserID, id.Subject)
	require.True(t, id.HasRole("ops"))
}
