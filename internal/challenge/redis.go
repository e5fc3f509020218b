package challenge

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "ech"
	maxWatchRetries    = 4
	sweepScanCount     = 256
)

// RedisStore shares records between instances. Each operation runs inside a
// WATCH/MULTI transaction on its key and is retried when another writer
// touched the key first.
//
// Keys expire in Redis retention after the record's ExpiresAt, so a late
// verification still sees the record and reports ErrExpired instead of
// ErrNotFound until a sweep or the key TTL removes it.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisStore returns a RedisStore using prefix for every key.
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if retention <= 0 {
		retention = 5 * time.Minute
	}
	return &RedisStore{
		redis:     client,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}

func (s *RedisStore) ttl(rec *Record, now time.Time) time.Duration {
	ttl := rec.ExpiresAt.Sub(now) + s.retention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (s *RedisStore) Put(ctx context.Context, key string, rec Record, resendAfter time.Duration, now time.Time) error {
	k := s.key(key)
	encoded, err := encodeRecord(&rec)
	if err != nil {
		return err
	}

	return s.watch(ctx, k, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		switch {
		case err == nil:
			if prev, derr := decodeRecord(data); derr == nil {
				if elapsed := now.Sub(prev.IssuedAt); elapsed < resendAfter {
					return &TooSoonError{Wait: resendAfter - elapsed}
				}
			}
		case !errors.Is(err, redis.Nil):
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, encoded, s.ttl(&rec, now))
			return nil
		})
		return err
	})
}

func (s *RedisStore) Take(ctx context.Context, key string, secretHash [32]byte, now time.Time) (Record, error) {
	k := s.key(key)
	var out Record

	err := s.watch(ctx, k, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if err != nil {
			return err
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return err
		}
		out = rec

		var outcome error
		switch {
		case rec.Expired(now):
			outcome = ErrExpired
		case rec.Attempts >= rec.MaxAttempts:
			outcome = ErrExhausted
		case subtle.ConstantTimeCompare(rec.SecretHash[:], secretHash[:]) == 1:
			outcome = nil
		default:
			rec.Attempts++
			out = rec
			updated, err := encodeRecord(&rec)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, k, updated, s.ttl(&rec, now))
				return nil
			})
			if err != nil {
				return err
			}
			return ErrMismatch
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, k)
			return nil
		})
		if err != nil {
			return err
		}
		return outcome
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Record{}, err
		}
		return out, err
	}
	return out, nil
}

func (s *RedisStore) Peek(ctx context.Context, key string, now time.Time) (Record, error) {
	data, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return Record{}, err
	}
	if rec.Expired(now) {
		if _, err := s.discardKey(ctx, s.key(key), rec.IssuedAt); err != nil {
			return Record{}, err
		}
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *RedisStore) Discard(ctx context.Context, key string, issuedAt time.Time) (bool, error) {
	return s.discardKey(ctx, s.key(key), issuedAt)
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Sweep(ctx context.Context, prefix string, now time.Time) (int, error) {
	var (
		cursor  uint64
		removed int
		pattern = s.key(prefix) + "*"
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, sweepScanCount).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrBackend, err)
		}

		for _, k := range keys {
			data, err := s.redis.Get(ctx, k).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return removed, fmt.Errorf("%w: %v", ErrBackend, err)
			}
			rec, err := decodeRecord(data)
			if err != nil || !rec.Expired(now) {
				continue
			}
			ok, err := s.discardKey(ctx, k, rec.IssuedAt)
			if err != nil {
				return removed, err
			}
			if ok {
				removed++
			}
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (s *RedisStore) discardKey(ctx context.Context, k string, issuedAt time.Time) (bool, error) {
	var deleted bool
	err := s.watch(ctx, k, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return err
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return err
		}
		if !sameIssue(rec.IssuedAt, issuedAt) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, k)
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	})
	return deleted, err
}

// watch runs fn under WATCH k, retrying when the key changed underneath.
// Store errors pass through; anything else is reported as ErrBackend.
func (s *RedisStore) watch(ctx context.Context, k string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxWatchRetries; i++ {
		err := s.redis.Watch(ctx, fn, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return classify(err)
	}
	return fmt.Errorf("%w: too much contention on %s", ErrBackend, k)
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return ErrNotFound
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrExpired), errors.Is(err, ErrExhausted),
		errors.Is(err, ErrMismatch), errors.Is(err, ErrTooSoon), errors.Is(err, errRecordCorrupt):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
}
