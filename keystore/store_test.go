package keystore

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(unix int64) *fakeClock {
	return &fakeClock{t: time.Unix(unix, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func mustHMAC(t *testing.T, id string, w Window) *SigningKey {
	t.Helper()
	k, err := NewHMACKey(id, testSecret(), w)
	require.NoError(t, err)
	return k
}

func TestStoreEmpty(t *testing.T) {
	t.Parallel()

	s := New(Options{})
	_, err := s.CurrentKey()
	require.ErrorIs(t, err, ErrNoKeyConfigured)

	_, err = s.KeyByID("missing")
	require.ErrorIs(t, err, ErrUnknownKey)
	require.Empty(t, s.Keys())
}

func TestStoreRotateKeepsPreviousKey(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(1000)
	s := New(Options{Now: clock.Now})

	a := mustHMAC(t, "a", Window{})
	b := mustHMAC(t, "b", Window{})

	require.NoError(t, s.Rotate(a))
	cur, err := s.CurrentKey()
	require.NoError(t, err)
	require.Equal(t, "a", cur.ID())

	require.NoError(t, s.Rotate(b))
	cur, err = s.CurrentKey()
	require.NoError(t, err)
	require.Equal(t, "b", cur.ID())

	old, err := s.KeyByID("a")
	require.NoError(t, err)
	require.Equal(t, "a", old.ID())

	infos := s.Keys()
	require.Len(t, infos, 2)
	for _, info := range infos {
		require.Equal(t, info.ID == "b", info.Current)
	}
}

func TestStoreRotateWithGraceEndsPreviousKey(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(1000)
	s := New(Options{Now: clock.Now})

	require.NoError(t, s.Rotate(mustHMAC(t, "a", Window{})))
	require.NoError(t, s.RotateWithGrace(mustHMAC(t, "b", Window{}), time.Minute))

	_, err := s.KeyByID("a")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = s.KeyByID("a")
	require.ErrorIs(t, err, ErrUnknownKey)

	require.NoError(t, s.Rotate(mustHMAC(t, "c", Window{})))
	require.Equal(t, 2, s.Snapshot().Len(), "expired key a pruned on rotation")
}

func TestStoreRotateRejections(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(1000)
	s := New(Options{Now: clock.Now})

	require.Error(t, s.Rotate(nil))

	signer, err := GenerateEd25519("ed", Window{})
	require.NoError(t, err)
	verifyOnly, err := NewEd25519VerifyKey("ed-pub", signer.public, Window{})
	require.NoError(t, err)
	require.ErrorIs(t, s.Rotate(verifyOnly), ErrKeyNotSigning)

	future := mustHMAC(t, "future", Window{NotBefore: clock.Now().Add(time.Hour)})
	require.ErrorIs(t, s.Rotate(future), ErrKeyNotValid)

	a := mustHMAC(t, "a", Window{})
	require.NoError(t, s.Rotate(a))
	require.ErrorIs(t, s.Rotate(mustHMAC(t, "a", Window{})), ErrDuplicateKey)
	require.NoError(t, s.Rotate(a), "re-installing the same key is allowed")

	require.ErrorIs(t, s.RotateWithGrace(mustHMAC(t, "b", Window{}), 0), ErrInvalidKey)
}

func TestStoreRotateAtUsesCallerClock(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(1000)
	s := New(Options{Now: clock.Now})
	future := mustHMAC(t, "future", Window{NotBefore: time.Unix(2000, 0)})

	require.ErrorIs(t, s.Rotate(future), ErrKeyNotValid)
	require.NoError(t, s.RotateAt(future, time.Unix(2000, 0)))
	require.Equal(t, "future", s.Snapshot().CurrentID())

	_, err := s.CurrentKey()
	require.ErrorIs(t, err, ErrNoKeyConfigured)
	clock.Advance(time.Hour)
	k, err := s.CurrentKey()
	require.NoError(t, err)
	require.Equal(t, "future", k.ID())
}

func TestStoreAddVerificationKey(t *testing.T) {
	t.Parallel()

	s := New(Options{})
	signer, err := GenerateEd25519("peer", Window{})
	require.NoError(t, err)
	peer, err := NewEd25519VerifyKey("peer", signer.public, Window{})
	require.NoError(t, err)

	require.NoError(t, s.Add(peer))
	require.ErrorIs(t, s.Add(peer), ErrDuplicateKey)

	_, err = s.CurrentKey()
	require.ErrorIs(t, err, ErrNoKeyConfigured)

	got, err := s.KeyByID("peer")
	require.NoError(t, err)
	require.False(t, got.CanSign())
}

func TestStoreRetireCurrentKey(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(1000)
	s := New(Options{Now: clock.Now})
	require.NoError(t, s.Rotate(mustHMAC(t, "a", Window{NotBefore: clock.Now()})))

	require.ErrorIs(t, s.Retire("missing", clock.Now()), ErrUnknownKey)
	require.ErrorIs(t, s.Retire("a", clock.Now()), ErrInvalidKey)

	require.NoError(t, s.Retire("a", clock.Now().Add(time.Second)))
	_, err := s.CurrentKey()
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = s.CurrentKey()
	require.ErrorIs(t, err, ErrNoKeyConfigured)

	require.Equal(t, 1, s.Prune())
	require.Equal(t, 0, s.Snapshot().Len())
}

func TestStoreSnapshotIsImmutable(t *testing.T) {
	t.Parallel()

	s := New(Options{})
	require.NoError(t, s.Rotate(mustHMAC(t, "a", Window{})))
	snap := s.Snapshot()

	require.NoError(t, s.Rotate(mustHMAC(t, "b", Window{})))
	require.Equal(t, "a", snap.CurrentID())
	require.Equal(t, 1, snap.Len())
	require.Equal(t, "b", s.Snapshot().CurrentID())
	require.Greater(t, s.Snapshot().Version(), snap.Version())
}

func TestStoreConcurrentRotateAndLookup(t *testing.T) {
	t.Parallel()

	s := New(Options{})
	require.NoError(t, s.Rotate(mustHMAC(t, "k-0", Window{})))

	const writers, rotations, readers = 4, 50, 8
	var wg sync.WaitGroup
	stop := make(chan struct{})
	failures := make(chan string, readers)

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Snapshot()
				if snap.Len() == 0 {
					failures <- "empty table observed"
					return
				}
				cur, err := snap.Current(time.Now())
				if err != nil {
					failures <- "no current key observed"
					return
				}
				if _, err := snap.Lookup(cur.ID(), time.Now()); err != nil {
					failures <- "current key not resolvable in same snapshot"
					return
				}
				if _, err := s.KeyByID("k-0"); err != nil {
					failures <- "initial key lost"
					return
				}
			}
		}()
	}

	var writersWG sync.WaitGroup
	for w := 0; w < writers; w++ {
		writersWG.Add(1)
		go func(w int) {
			defer writersWG.Done()
			for i := 0; i < rotations; i++ {
				secret := testSecret()
				k, err := NewHMACKey(
					"k-"+string(rune('a'+w))+"-"+time.Now().Format("150405.000000000"),
					secret,
					Window{},
				)
				if err != nil {
					continue
				}
				_ = s.Rotate(k)
			}
		}(w)
	}
	writersWG.Wait()
	close(stop)
	wg.Wait()
	close(failures)

	for msg := range failures {
		t.Fatal(msg)
	}
}

func TestStoreJWKSPublishesOnlyEd25519(t *testing.T) {
	t.Parallel()

	s := New(Options{})
	ed, err := GenerateEd25519("ed", Window{})
	require.NoError(t, err)
	require.NoError(t, s.Rotate(mustHMAC(t, "hs", Window{})))
	require.NoError(t, s.Add(ed))

	raw, err := s.JWKS()
	require.NoError(t, err)

	var set struct {
		Keys []map[string]string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(raw, &set))
	require.Len(t, set.Keys, 1)
	require.Equal(t, "ed", set.Keys[0]["kid"])
	require.Equal(t, "OKP", set.Keys[0]["kty"])
	require.Equal(t, "EdDSA", set.Keys[0]["alg"])
}
