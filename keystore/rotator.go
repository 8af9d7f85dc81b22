package keystore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RotatorConfig controls periodic key rotation.
type RotatorConfig struct {
	// Interval between rotations.
	Interval time.Duration
	// Overlap keeps the previous key valid for verification after a rotation.
	// It is counted from the rotation instant and must cover the token
	// lifetime.
	Overlap time.Duration
	// KeyIDPrefix is prepended to generated key ids.
	KeyIDPrefix string
}

// Rotator generates a fresh Ed25519 key on a fixed interval and installs it
// as current, ending the previous key's window after Overlap.
type Rotator struct {
	store  *Store
	cfg    RotatorConfig
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRotator validates cfg and returns a stopped rotator.
func NewRotator(store *Store, cfg RotatorConfig, logger *zap.Logger) (*Rotator, error) {
	if store == nil {
		return nil, errors.New("rotator requires a store")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("rotation interval must be positive")
	}
	if cfg.Overlap <= 0 {
		return nil, errors.New("rotation overlap must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.KeyIDPrefix = strings.TrimSpace(cfg.KeyIDPrefix)
	return &Rotator{store: store, cfg: cfg, logger: logger}, nil
}

// RotateNow generates and installs a new key immediately.
func (r *Rotator) RotateNow() (KeyInfo, error) {
	now := r.store.now().UTC()
	kid := r.cfg.KeyIDPrefix + now.Format("20060102T150405Z") + "-" + uuid.NewString()[:8]

	key, err := GenerateEd25519(kid, Window{NotBefore: now})
	if err != nil {
		return KeyInfo{}, err
	}
	if r.store.Snapshot().CurrentID() == "" {
		err = r.store.Rotate(key)
	} else {
		err = r.store.RotateWithGrace(key, r.cfg.Overlap)
	}
	if err != nil {
		return KeyInfo{}, fmt.Errorf("install rotated key: %w", err)
	}
	info := key.Info()
	info.Current = true
	return info, nil
}

// Start launches the rotation loop. It returns immediately; call Close to stop.
func (r *Rotator) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)
}

func (r *Rotator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("key rotation loop stopped")
			return
		case <-ticker.C:
			info, err := r.RotateNow()
			if err != nil {
				r.logger.Error("key rotation failed", zap.Error(err))
				continue
			}
			if pruned := r.store.Prune(); pruned > 0 {
				r.logger.Debug("pruned expired keys", zap.Int("count", pruned))
			}
			r.logger.Info("key rotation completed", zap.String("kid", info.ID))
		}
	}
}

// Close stops the loop and waits for it to exit.
func (r *Rotator) Close() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
