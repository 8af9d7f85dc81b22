package keystore

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Options configures a [Store].
type Options struct {
	// Now is the clock used to evaluate validity windows. Defaults to time.Now.
	Now func() time.Time
	// Logger receives rotation events. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Store owns the key table. Reads are lock-free; writes are serialised and
// publish a fresh immutable [Table].
type Store struct {
	table  atomic.Pointer[Table]
	mu     sync.Mutex
	now    func() time.Time
	logger *zap.Logger
}

// New returns an empty store. CurrentKey fails with [ErrNoKeyConfigured]
// until a key is installed with [Store.Rotate].
func New(opts Options) *Store {
	s := &Store{
		now:    opts.Now,
		logger: opts.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.table.Store(emptyTable)
	return s
}

// Snapshot returns the table currently published.
func (s *Store) Snapshot() *Table {
	return s.table.Load()
}

// CurrentKey returns the active issuance key.
func (s *Store) CurrentKey() (*SigningKey, error) {
	return s.Snapshot().Current(s.now())
}

// KeyByID returns the key for kid when it is installed and valid now.
func (s *Store) KeyByID(kid string) (*SigningKey, error) {
	return s.Snapshot().Lookup(kid, s.now())
}

// Rotate installs key as the current issuance key. The previous current key
// stays resolvable by id until its own window ends. Expired keys are pruned.
func (s *Store) Rotate(key *SigningKey) error {
	return s.rotate(key, 0, s.now())
}

// RotateAt is [Store.Rotate] with the window check and pruning done at now
// instead of the store clock. Callers that issue and verify against their
// own clock rotate with it too.
func (s *Store) RotateAt(key *SigningKey, now time.Time) error {
	return s.rotate(key, 0, now)
}

// RotateWithGrace behaves like [Store.Rotate] and additionally ends the
// previous current key's window at now+grace, unless it already ends sooner.
func (s *Store) RotateWithGrace(key *SigningKey, grace time.Duration) error {
	if grace <= 0 {
		return fmt.Errorf("%w: grace must be positive", ErrInvalidKey)
	}
	return s.rotate(key, grace, s.now())
}

func (s *Store) rotate(key *SigningKey, grace time.Duration, now time.Time) error {
	if key == nil {
		return fmt.Errorf("%w: nil key", ErrInvalidKey)
	}
	if !key.CanSign() {
		return ErrKeyNotSigning
	}
	if !key.ValidAt(now) {
		return ErrKeyNotValid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.table.Load()
	if existing, ok := prev.keys[key.id]; ok && existing != key {
		return ErrDuplicateKey
	}

	next := prev.clone()
	previousID := next.current
	if grace > 0 && previousID != "" && previousID != key.id {
		if old, ok := next.keys[previousID]; ok {
			end := now.Add(grace)
			if na := old.window.NotAfter; na.IsZero() || end.Before(na) {
				next.keys[previousID] = old.withNotAfter(end)
			}
		}
	}
	next.keys[key.id] = key
	next.current = key.id
	pruned := next.prune(now, key.id)
	s.table.Store(next)

	s.logger.Info("signing key rotated",
		zap.String("kid", key.id),
		zap.String("previous_kid", previousID),
		zap.String("alg", string(key.alg)),
		zap.Int("keys", len(next.keys)),
		zap.Int("pruned", pruned),
	)
	return nil
}

// Add installs a key for verification only; the current key is unchanged.
func (s *Store) Add(key *SigningKey) error {
	if key == nil {
		return fmt.Errorf("%w: nil key", ErrInvalidKey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.table.Load()
	if _, ok := prev.keys[key.id]; ok {
		return ErrDuplicateKey
	}
	next := prev.clone()
	next.keys[key.id] = key
	next.prune(s.now(), key.id)
	s.table.Store(next)

	s.logger.Info("verification key added", zap.String("kid", key.id), zap.String("alg", string(key.alg)))
	return nil
}

// Retire ends kid's validity window at at. Retiring the current key at or
// before now leaves the store without an issuance key.
func (s *Store) Retire(kid string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.table.Load()
	k, ok := prev.keys[kid]
	if !ok {
		return ErrUnknownKey
	}
	if nb := k.window.NotBefore; !nb.IsZero() && !at.After(nb) {
		return fmt.Errorf("%w: retirement precedes not-before", ErrInvalidKey)
	}
	next := prev.clone()
	next.keys[kid] = k.withNotAfter(at)
	s.table.Store(next)

	s.logger.Info("signing key retired", zap.String("kid", kid), zap.Time("not_after", at))
	return nil
}

// Prune removes keys whose window has ended and returns how many were dropped.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.table.Load()
	next := prev.clone()
	removed := next.prune(s.now(), "")
	if removed == 0 {
		return 0
	}
	s.table.Store(next)
	return removed
}

// Keys returns metadata for every installed key.
func (s *Store) Keys() []KeyInfo {
	return s.Snapshot().Infos()
}
