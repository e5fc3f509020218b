package challenge

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const memoryShards = 32

type memoryShard struct {
	mu      sync.Mutex
	records map[string]Record
}

// MemoryStore keeps records in process memory, split into shards selected by
// key hash. A key's operations hold only its shard lock, and only for the
// duration of one check-and-mutate step.
type MemoryStore struct {
	shards [memoryShards]memoryShard
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i].records = make(map[string]Record)
	}
	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	return &s.shards[xxhash.Sum64String(key)%memoryShards]
}

func (s *MemoryStore) Put(_ context.Context, key string, rec Record, resendAfter time.Duration, now time.Time) error {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if prev, ok := sh.records[key]; ok {
		if elapsed := now.Sub(prev.IssuedAt); elapsed < resendAfter {
			return &TooSoonError{Wait: resendAfter - elapsed}
		}
	}
	sh.records[key] = rec
	return nil
}

func (s *MemoryStore) Take(_ context.Context, key string, secretHash [32]byte, now time.Time) (Record, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.Expired(now) {
		delete(sh.records, key)
		return rec, ErrExpired
	}
	if rec.Attempts >= rec.MaxAttempts {
		delete(sh.records, key)
		return rec, ErrExhausted
	}
	if subtle.ConstantTimeCompare(rec.SecretHash[:], secretHash[:]) == 1 {
		delete(sh.records, key)
		return rec, nil
	}

	rec.Attempts++
	sh.records[key] = rec
	return rec, ErrMismatch
}

func (s *MemoryStore) Peek(_ context.Context, key string, now time.Time) (Record, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.Expired(now) {
		delete(sh.records, key)
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Discard(_ context.Context, key string, issuedAt time.Time) (bool, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[key]
	if !ok || !sameIssue(rec.IssuedAt, issuedAt) {
		return false, nil
	}
	delete(sh.records, key)
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	_, ok := sh.records[key]
	delete(sh.records, key)
	return ok, nil
}

func (s *MemoryStore) Sweep(ctx context.Context, prefix string, now time.Time) (int, error) {
	removed := 0
	for i := range s.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		sh := &s.shards[i]
		sh.mu.Lock()
		for key, rec := range sh.records {
			if strings.HasPrefix(key, prefix) && rec.Expired(now) {
				delete(sh.records, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Len returns the number of stored records, expired or not.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.records)
		sh.mu.Unlock()
	}
	return n
}
