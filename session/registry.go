package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	lockStripes       = 64
	defaultMaxRetries = 4
)

// AddResult reports what [Registry.Add] did to the list.
type AddResult struct {
	Session Descriptor
	Pruned  int
	Evicted int
	Count   int
}

// Registry mutates per-identity session lists. Writers for the same identity
// are serialized in-process by a striped mutex, and across processes by the
// repository's version check.
type Registry struct {
	repo       Repository
	limits     Limits
	maxRetries int
	locks      [lockStripes]sync.Mutex
}

// NewRegistry returns a Registry over repo. Zero limits fall back to
// [DefaultLimits].
func NewRegistry(repo Repository, limits Limits) *Registry {
	def := DefaultLimits()
	if limits.MaxSessions <= 0 {
		limits.MaxSessions = def.MaxSessions
	}
	if limits.MaxAge <= 0 {
		limits.MaxAge = def.MaxAge
	}
	return &Registry{
		repo:       repo,
		limits:     limits,
		maxRetries: defaultMaxRetries,
	}
}

// Limits returns the bounds the registry enforces.
func (r *Registry) Limits() Limits {
	return r.limits
}

// Add prunes sessions idle for longer than MaxAge, appends d and evicts the
// oldest entries beyond MaxSessions, then persists the list.
func (r *Registry) Add(ctx context.Context, userID string, d Descriptor, now time.Time) (AddResult, error) {
	var res AddResult
	err := r.update(ctx, userID, func(list []Descriptor) []Descriptor {
		pruned, removed := Prune(list, now, r.limits.MaxAge)
		next, evicted := Append(pruned, d, r.limits.MaxSessions)
		res = AddResult{
			Session: d,
			Pruned:  removed,
			Evicted: evicted,
			Count:   len(next),
		}
		return next
	})
	if err != nil {
		return AddResult{}, err
	}
	return res, nil
}

// RevokeAllExcept keeps only currentID. An unknown currentID leaves the list
// empty. It returns how many sessions were removed.
func (r *Registry) RevokeAllExcept(ctx context.Context, userID, currentID string) (int, error) {
	removed := 0
	err := r.update(ctx, userID, func(list []Descriptor) []Descriptor {
		next := RetainOnly(list, currentID)
		removed = len(list) - len(next)
		return next
	})
	return removed, err
}

// Clear removes every session of userID.
func (r *Registry) Clear(ctx context.Context, userID string) (int, error) {
	removed := 0
	err := r.update(ctx, userID, func(list []Descriptor) []Descriptor {
		removed = len(list)
		return []Descriptor{}
	})
	return removed, err
}

// List returns the stored sessions of userID without pruning them.
func (r *Registry) List(ctx context.Context, userID string) ([]Descriptor, error) {
	list, _, err := r.repo.LoadSessions(ctx, userID)
	return list, err
}

func (r *Registry) update(ctx context.Context, userID string, mutate func([]Descriptor) []Descriptor) error {
	mu := &r.locks[xxhash.Sum64String(userID)%lockStripes]
	mu.Lock()
	defer mu.Unlock()

	for i := 0; i < r.maxRetries; i++ {
		list, version, err := r.repo.LoadSessions(ctx, userID)
		if err != nil {
			return err
		}

		err = r.repo.SaveSessions(ctx, userID, version, mutate(list))
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return err
	}

	return ErrRetriesExhausted
}
