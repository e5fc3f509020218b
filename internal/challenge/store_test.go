package challenge

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/eduAuth/internal"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type storeMode struct {
	name  string
	setup func(t *testing.T) Store
}

// storeModes returns every Store implementation under test. A real Redis is
// added when REDIS_ADDR is set.
func storeModes(t *testing.T) []storeMode {
	t.Helper()

	modes := []storeMode{
		{
			name:  "memory",
			setup: func(t *testing.T) Store { return NewMemoryStore() },
		},
		{
			name: "miniredis",
			setup: func(t *testing.T) Store {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis.Run failed: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = rdb.Close(); mr.Close() })
				return NewRedisStore(rdb, "test", time.Minute)
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, storeMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) Store {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				t.Cleanup(func() { rdb.FlushDB(context.Background()); _ = rdb.Close() })
				return NewRedisStore(rdb, "test", time.Minute)
			},
		})
	}
	return modes
}

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testRecord(subject, secret string, now time.Time) Record {
	return Record{
		Subject:     subject,
		Destination: subject + "@example.com",
		SecretHash:  internal.HashSecret(secret),
		IssuedAt:    now,
		ExpiresAt:   now.Add(10 * time.Minute),
		MaxAttempts: 3,
	}
}

func TestStoreTakeOrder(t *testing.T) {
	for _, mode := range storeModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			s := mode.setup(t)

			if _, err := s.Take(ctx, "k", internal.HashSecret("123456"), testEpoch); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			if err := s.Put(ctx, "k", testRecord("u1", "123456", testEpoch), time.Minute, testEpoch); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			rec, err := s.Take(ctx, "k", internal.HashSecret("000000"), testEpoch.Add(time.Second))
			if !errors.Is(err, ErrMismatch) {
				t.Fatalf("expected ErrMismatch, got %v", err)
			}
			if rec.Attempts != 1 || rec.Remaining() != 2 {
				t.Fatalf("expected 1 attempt used, got %+v", rec)
			}

			rec, err = s.Take(ctx, "k", internal.HashSecret("123456"), testEpoch.Add(2*time.Second))
			if err != nil {
				t.Fatalf("Take failed: %v", err)
			}
			if rec.Subject != "u1" || rec.Destination != "u1@example.com" {
				t.Fatalf("unexpected record: %+v", rec)
			}

			if _, err := s.Take(ctx, "k", internal.HashSecret("123456"), testEpoch.Add(3*time.Second)); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected consumed record to be gone, got %v", err)
			}
		})
	}
}

func TestStoreAttemptsExhaustedAfterMax(t *testing.T) {
	for _, mode := range storeModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			s := mode.setup(t)

			if err := s.Put(ctx, "k", testRecord("u1", "123456", testEpoch), time.Minute, testEpoch); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			for i := 1; i <= 3; i++ {
				rec, err := s.Take(ctx, "k", internal.HashSecret("999999"), testEpoch)
				if !errors.Is(err, ErrMismatch) {
					t.Fatalf("attempt %d: expected ErrMismatch, got %v", i, err)
				}
				if rec.Remaining() != 3-i {
					t.Fatalf("attempt %d: expected %d remaining, got %d", i, 3-i, rec.Remaining())
				}
			}

			// Even the correct secret is refused once attempts are used up.
			if _, err := s.Take(ctx, "k", internal.HashSecret("123456"), testEpoch); !errors.Is(err, ErrExhausted) {
				t.Fatalf("expected ErrExhausted, got %v", err)
			}
			if _, err := s.Take(ctx, "k", internal.HashSecret("123456"), testEpoch); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected record removed after exhaustion, got %v", err)
			}
		})
	}
}

func TestStoreExpiredRecordIsDeleted(t *testing.T) {
	for _, mode := range storeModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			s := mode.setup(t)

			if err := s.Put(ctx, "k", testRecord("u1", "123456", testEpoch), time.Minute, testEpoch); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			late := testEpoch.Add(10*time.Minute + time.Second)
			if _, err := s.Take(ctx, "k", internal.HashSecret("123456"), late); !errors.Is(err, ErrExpired) {
				t.Fatalf("expected ErrExpired, got %v", err)
			}
			if _, err := s.Take(ctx, "k", internal.HashSecret("123456"), late); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after expiry, got %v", err)
			}
		})
	}
}

func TestStorePutThrottle(t *testing.T) {
	for _, mode := range storeModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			s := mode.setup(t)

			first := testRecord("u1", "111111", testEpoch)
			if err := s.Put(ctx, "k", first, time.Minute, testEpoch); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			now := testEpoch.Add(15 * time.Second)
			err := s.Put(ctx, "k", testRecord("u1", "222222", now), time.Minute, now)
			var tooSoon *TooSoonError
			if !errors.As(err, &tooSoon) || !errors.Is(err, ErrTooSoon) {
				t.Fatalf("expected TooSoonError, got %v", err)
			}
			if tooSoon.Wait != 45*time.Second {
				t.Fatalf("expected 45s wait, got %s", tooSoon.Wait)
			}

			// The original record is untouched.
			if _, err := s.Take(ctx, "k", internal.HashSecret("111111"), now); err != nil {
				t.Fatalf("expected first secret to still verify: %v", err)
			}

			if err := s.Put(ctx, "k", first, time.Minute, testEpoch); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			now = testEpoch.Add(time.Minute)
			if err := s.Put(ctx, "k", testRecord("u1", "333333", now), time.Minute, now); err != nil {
				t.Fatalf("Put after throttle failed: %v", err)
			}
			if _, err := s.Take(ctx, "k", internal.HashSecret("111111"), now); !errors.Is(err, ErrMismatch) {
				t.Fatalf("expected superseded secret to mismatch, got %v", err)
			}
		})
	}
}

func TestStorePeekAndDiscard(t *testing.T) {
	for _, mode := range storeModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			s := mode.setup(t)

			first := testRecord("u1", "111111", testEpoch)
			if err := s.Put(ctx, "k", first, time.Minute, testEpoch); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			rec, err := s.Peek(ctx, "k", testEpoch)
			if err != nil {
				t.Fatalf("Peek failed: %v", err)
			}
			if rec.SecretHash != first.SecretHash || !rec.ExpiresAt.Equal(first.ExpiresAt) {
				t.Fatalf("unexpected peeked record: %+v", rec)
			}

			later := testEpoch.Add(2 * time.Minute)
			if err := s.Put(ctx, "k", testRecord("u1", "222222", later), time.Minute, later); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			// A rollback of the first issue must not remove the newer record.
			ok, err := s.Discard(ctx, "k", first.IssuedAt)
			if err != nil || ok {
				t.Fatalf("expected stale discard to be a no-op, got %v %v", ok, err)
			}
			ok, err = s.Discard(ctx, "k", later)
			if err != nil || !ok {
				t.Fatalf("expected discard of current record, got %v %v", ok, err)
			}
			if _, err := s.Peek(ctx, "k", later); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after discard, got %v", err)
			}

			if err := s.Put(ctx, "k", first, time.Minute, testEpoch); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if _, err := s.Peek(ctx, "k", testEpoch.Add(11*time.Minute)); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected expired peek to report ErrNotFound, got %v", err)
			}
			if ok, err := s.Delete(ctx, "k"); err != nil || ok {
				t.Fatalf("expected peek to have removed expired record, got %v %v", ok, err)
			}
		})
	}
}

func TestStoreSweep(t *testing.T) {
	for _, mode := range storeModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			s := mode.setup(t)

			old := testRecord("old", "111111", testEpoch)
			fresh := testRecord("fresh", "222222", testEpoch.Add(9*time.Minute))
			other := testRecord("other", "333333", testEpoch)
			for key, rec := range map[string]Record{"a:old": old, "a:fresh": fresh, "b:other": other} {
				if err := s.Put(ctx, key, rec, 0, rec.IssuedAt); err != nil {
					t.Fatalf("Put %s failed: %v", key, err)
				}
			}

			removed, err := s.Sweep(ctx, "a:", testEpoch.Add(11*time.Minute))
			if err != nil {
				t.Fatalf("Sweep failed: %v", err)
			}
			if removed != 1 {
				t.Fatalf("expected 1 removed, got %d", removed)
			}
			if _, err := s.Peek(ctx, "a:fresh", testEpoch.Add(11*time.Minute)); err != nil {
				t.Fatalf("expected fresh record to survive: %v", err)
			}
			if ok, _ := s.Delete(ctx, "b:other"); !ok {
				t.Fatal("expected record outside prefix to survive sweep")
			}
		})
	}
}

func TestStoreConcurrentTakeAllowsOneSuccess(t *testing.T) {
	for _, mode := range storeModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			s := mode.setup(t)

			if err := s.Put(ctx, "k", testRecord("u1", "123456", testEpoch), time.Minute, testEpoch); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
			)
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := s.Take(ctx, "k", internal.HashSecret("123456"), testEpoch); err == nil {
						mu.Lock()
						successes++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			if successes != 1 {
				t.Fatalf("expected exactly one successful take, got %d", successes)
			}
		})
	}
}

func TestRedisStoreKeyTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedisStore(rdb, "", 5*time.Minute)
	if err := s.Put(context.Background(), "e2fa:u1", testRecord("u1", "123456", testEpoch), time.Minute, testEpoch); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if !mr.Exists("ech:e2fa:u1") {
		t.Fatal("expected key under default prefix")
	}
	if ttl := mr.TTL("ech:e2fa:u1"); ttl != 15*time.Minute {
		t.Fatalf("expected ttl of lifetime plus retention, got %s", ttl)
	}
}

func TestRedisStoreBackendError(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	s := NewRedisStore(rdb, "test", time.Minute)
	err = s.Put(context.Background(), "k", testRecord("u1", "123456", testEpoch), time.Minute, testEpoch)
	if !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
	if _, err := s.Peek(context.Background(), "k", testEpoch); !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend from Peek, got %v", err)
	}
}

func TestRedisStoreCorruptRecord(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	if err := mr.Set("test:k", "garbage"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	s := NewRedisStore(rdb, "test", time.Minute)
	if _, err := s.Take(context.Background(), "k", internal.HashSecret("123456"), testEpoch); !errors.Is(err, errRecordCorrupt) {
		t.Fatalf("expected corrupt record error, got %v", err)
	}
}
