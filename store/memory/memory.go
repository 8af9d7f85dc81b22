// Package memory is an in-process goToken.UserProvider for tests, demos and
// single-instance deployments.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/google/uuid"
)

var _ goToken.UserProvider = (*Store)(nil)

// Store keeps users in maps guarded by a RWMutex. Identifiers are matched
// case-insensitively.
type Store struct {
	mu           sync.RWMutex
	users        map[string]goToken.UserRecord
	byIdentifier map[string]string
	now          func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:        make(map[string]goToken.UserRecord),
		byIdentifier: make(map[string]string),
		now:          time.Now,
	}
}

func (s *Store) GetUserByIdentifier(_ context.Context, identifier string) (goToken.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdentifier[normalize(identifier)]
	if !ok {
		return goToken.UserRecord{}, goToken.ErrUserNotFound
	}
	return clone(s.users[id]), nil
}

func (s *Store) CreateUser(_ context.Context, in goToken.CreateUserInput) (goToken.UserRecord, error) {
	key := normalize(in.Identifier)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byIdentifier[key]; exists {
		return goToken.UserRecord{}, goToken.ErrProviderDuplicateIdentifier
	}

	u := goToken.UserRecord{
		UserID:       uuid.NewString(),
		Identifier:   in.Identifier,
		PasswordHash: in.PasswordHash,
		Roles:        append([]string(nil), in.Roles...),
		CreatedAt:    s.now().UTC(),
	}
	s.users[u.UserID] = u
	s.byIdentifier[key] = u.UserID
	return clone(u), nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID string, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return goToken.ErrUserNotFound
	}
	u.PasswordHash = newHash
	s.users[userID] = u
	return nil
}

// Len returns the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func clone(u goToken.UserRecord) goToken.UserRecord {
	u.Roles = append([]string(nil), u.Roles...)
	return u
}
