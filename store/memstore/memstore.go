// Package memstore is an in-memory [store.Store] for single-instance
// deployments, demos and tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/eduAuth/session"
	"github.com/MrEthical07/eduAuth/store"
)

// Store keeps users in a map guarded by one RWMutex, with a secondary index
// on normalized email.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*store.User
	byEmail map[string]string
	now     func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:    make(map[string]*store.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *Store) CreateUser(_ context.Context, user *store.User) error {
	email := store.NormalizeEmail(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[email]; taken {
		return store.ErrDuplicateEmail
	}

	cp := cloneUser(user)
	cp.Email = email
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	cp.UpdatedAt = cp.CreatedAt
	if cp.Sessions == nil {
		cp.Sessions = []session.Descriptor{}
	}

	s.byID[cp.ID] = cp
	s.byEmail[email] = cp.ID
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[store.NormalizeEmail(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(s.byID[id]), nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	return s.mutate(id, func(u *store.User) {
		u.PasswordHash = passwordHash
	})
}

func (s *Store) SetTwoFactorEnabled(_ context.Context, id string, enabled bool) error {
	return s.mutate(id, func(u *store.User) {
		u.TwoFactorEnabled = enabled
	})
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.byEmail, u.Email)
	delete(s.byID, id)
	return nil
}

func (s *Store) LoadSessions(_ context.Context, userID string) ([]session.Descriptor, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[userID]
	if !ok {
		return nil, 0, store.ErrNotFound
	}
	return append([]session.Descriptor(nil), u.Sessions...), u.SessionsVersion, nil
}

func (s *Store) SaveSessions(_ context.Context, userID string, expected uint64, sessions []session.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return store.ErrNotFound
	}
	if u.SessionsVersion != expected {
		return session.ErrVersionConflict
	}
	u.Sessions = append([]session.Descriptor{}, sessions...)
	u.SessionsVersion++
	u.UpdatedAt = s.now()
	return nil
}

// Len returns the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Store) mutate(id string, fn func(*store.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = s.now()
	return nil
}

func cloneUser(u *store.User) *store.User {
	cp := *u
	cp.Sessions = append([]session.Descriptor(nil), u.Sessions...)
	return &cp
}
