package goToken

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/keystore"
	"github.com/MrEthical07/goToken/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockUserProvider struct {
	mu           sync.Mutex
	users        map[string]UserRecord
	byIdentifier map[string]string
	nextID       int

	getErr    error
	createErr error
	updateErr error

	getCalls    int
	createCalls int
	updateCalls int
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		users:        make(map[string]UserRecord),
		byIdentifier: make(map[string]string),
	}
}

func (m *mockUserProvider) GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++

	if m.getErr != nil {
		return UserRecord{}, m.getErr
	}
	id, ok := m.byIdentifier[strings.ToLower(identifier)]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return m.users[id], nil
}

func (m *mockUserProvider) CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++

	if m.createErr != nil {
		return UserRecord{}, m.createErr
	}
	key := strings.ToLower(input.Identifier)
	if _, exists := m.byIdentifier[key]; exists {
		return UserRecord{}, ErrProviderDuplicateIdentifier
	}

	m.nextID++
	u := UserRecord{
		UserID:       "u" + strconv.Itoa(m.nextID),
		Identifier:   input.Identifier,
		PasswordHash: input.PasswordHash,
		Roles:        append([]string(nil), input.Roles...),
		CreatedAt:    time.Unix(1700000000, 0).UTC(),
	}
	m.users[u.UserID] = u
	m.byIdentifier[key] = u.UserID
	return u, nil
}

func (m *mockUserProvider) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++

	if m.updateErr != nil {
		return m.updateErr
	}
	u, ok := m.users[userID]
	if !ok {
		return errors.New("not found")
	}
	u.PasswordHash = newHash
	m.users[userID] = u
	return nil
}

func (m *mockUserProvider) seed(t testing.TB, hasher PasswordHasher, userID, identifier, plain string, roles ...string) {
	t.Helper()

	hash, err := hasher.Hash(plain)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = UserRecord{
		UserID:       userID,
		Identifier:   identifier,
		PasswordHash: hash,
		Roles:        roles,
	}
	m.byIdentifier[strings.ToLower(identifier)] = userID
}

func (m *mockUserProvider) calls() (get, create, update int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls, m.createCalls, m.updateCalls
}

func (m *mockUserProvider) hashOf(userID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID].PasswordHash
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(unix int64) *testClock {
	return &testClock{now: time.Unix(unix, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testArgon2Config is the cheapest configuration the hasher accepts.
func testArgon2Config() password.Argon2Config {
	return password.Argon2Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t testing.TB) *password.Argon2 {
	t.Helper()

	h, err := password.NewArgon2(testArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return h
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig() Config {
	cfg := DefaultConfig()
	argon := testArgon2Config()
	cfg.Password.Memory = argon.Memory
	cfg.Password.Time = argon.Time
	cfg.Password.Parallelism = argon.Parallelism
	cfg.Token.Lifetime = 10 * time.Second
	cfg.Token.Skew = 5 * time.Second
	cfg.RateLimit.MaxLoginAttempts = 3
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestKeyStore(t testing.TB, clock *testClock, kid string) *keystore.Store {
	t.Helper()

	ks := keystore.New(keystore.Options{Now: clock.Now})
	key, err := keystore.NewHMACKey(kid, []byte(strings.Repeat("k", 32)+kid), keystore.Window{})
	if err != nil {
		t.Fatalf("NewHMACKey failed: %v", err)
	}
	if err := ks.Rotate(key); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	return ks
}

type testEngine struct {
	engine *Engine
	up     *mockUserProvider
	clock  *testClock
	keys   *keystore.Store
	redis  *miniredis.Miniredis
}

type engineOption func(*Builder)

func withAuditSink(sink AuditSink) engineOption {
	return func(b *Builder) { b.WithAuditSink(sink) }
}

func withHasher(h PasswordHasher) engineOption {
	return func(b *Builder) { b.WithPasswordHasher(h) }
}

func newEngineForTest(t testing.TB, cfg Config, opts ...engineOption) *testEngine {
	t.Helper()

	mr, rdb := newTestRedis(t)
	clock := newTestClock(1000)
	keys := newTestKeyStore(t, clock, "k1")
	up := newMockUserProvider()

	b := New().
		WithConfig(cfg).
		WithKeyStore(keys).
		WithUserProvider(up).
		WithRedis(rdb).
		WithClock(clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &testEngine{
		engine: engine,
		up:     up,
		clock:  clock,
		keys:   keys,
		redis:  mr,
	}
}

func mustHMACKey(t testing.TB, kid string) *keystore.SigningKey {
	t.Helper()

	key, err := keystore.NewHMACKey(kid, []byte(strings.Repeat("s", 32)+kid), keystore.Window{})
	if err != nil {
		t.Fatalf("NewHMACKey failed: %v", err)
	}
	return key
}
