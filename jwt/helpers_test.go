package jwt

import (
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/keystore"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(unix int64) *testClock {
	return &testClock{t: time.Unix(unix, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(unix int64) {
	c.mu.Lock()
	c.t = time.Unix(unix, 0)
	c.mu.Unlock()
}

func hmacKey(t *testing.T, id string) *keystore.SigningKey {
	t.Helper()
	k, err := keystore.NewHMACKey(id, []byte("0123456789abcdef0123456789abcdef"), keystore.Window{})
	if err != nil {
		t.Fatalf("new hmac key: %v", err)
	}
	return k
}

func edKey(t *testing.T, id string) *keystore.SigningKey {
	t.Helper()
	k, err := keystore.GenerateEd25519(id, keystore.Window{})
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return k
}

type fixture struct {
	clock    *testClock
	store    *keystore.Store
	issuer   *Issuer
	verifier *Verifier
}

func newFixture(t *testing.T, key *keystore.SigningKey, lifetime, skew time.Duration) *fixture {
	t.Helper()
	clock := newTestClock(1000)
	store := keystore.New(keystore.Options{Now: clock.Now})
	if key != nil {
		if err := store.Rotate(key); err != nil {
			t.Fatalf("rotate: %v", err)
		}
	}
	codec := NewCodec()
	iss, err := NewIssuer(store, codec, IssuerConfig{Lifetime: lifetime, Now: clock.Now})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	ver, err := NewVerifier(store, codec, VerifierConfig{Skew: skew, Now: clock.Now})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return &fixture{clock: clock, store: store, issuer: iss, verifier: ver}
}
