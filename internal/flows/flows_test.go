package flows

import (
	"context"
	"errors"
	"sync"
)

var (
	errNotReady        = errors.New("not ready")
	errInvalidReg      = errors.New("invalid registration")
	errWeak            = errors.New("weak credential")
	errDuplicate       = errors.New("duplicate identity")
	errProviderDup     = errors.New("provider duplicate")
	errRegisterLimited = errors.New("register rate limited")
	errInvalidCred     = errors.New("invalid credential")
	errUnknownIdentity = errors.New("unknown identity")
	errUserNotFound    = errors.New("user not found")
	errLoginLimited    = errors.New("login rate limited")
)

type auditRecord struct {
	eventType  string
	success    bool
	userID     string
	identifier string
	keyID      string
	err        error
	metadata   map[string]string
}

type recorder struct {
	mu      sync.Mutex
	events  []auditRecord
	metrics map[int]int
}

func newRecorder() *recorder {
	return &recorder{metrics: map[int]int{}}
}

func (r *recorder) audit(_ context.Context, eventType string, success bool, userID, identifier, keyID string, err error, metadata func() map[string]string) {
	rec := auditRecord{
		eventType:  eventType,
		success:    success,
		userID:     userID,
		identifier: identifier,
		keyID:      keyID,
		err:        err,
	}
	if metadata != nil {
		rec.metadata = metadata()
	}
	r.mu.Lock()
	r.events = append(r.events, rec)
	r.mu.Unlock()
}

func (r *recorder) inc(id int) {
	r.mu.Lock()
	r.metrics[id]++
	r.mu.Unlock()
}

func (r *recorder) last() auditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return auditRecord{}
	}
	return r.events[len(r.events)-1]
}
