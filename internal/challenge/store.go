package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound  = errors.New("challenge not found")
	ErrExpired   = errors.New("challenge expired")
	ErrExhausted = errors.New("challenge attempts exhausted")
	ErrMismatch  = errors.New("challenge secret mismatch")
	ErrTooSoon   = errors.New("challenge reissued too soon")
	ErrBackend   = errors.New("challenge backend unavailable")
)

// TooSoonError carries how long the caller must wait before a new record
// can replace the pending one.
type TooSoonError struct {
	Wait time.Duration
}

func (e *TooSoonError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrTooSoon.Error(), e.Wait)
}

func (e *TooSoonError) Unwrap() error { return ErrTooSoon }

// Record is one pending challenge.
type Record struct {
	Subject     string
	Destination string
	SecretHash  [32]byte
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Attempts    uint16
	MaxAttempts uint16
}

// Remaining returns how many wrong submissions are left.
func (r Record) Remaining() int {
	left := int(r.MaxAttempts) - int(r.Attempts)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether now is past ExpiresAt.
func (r Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Store persists records. Every method is atomic per key.
type Store interface {
	// Put replaces the record at key. When a record exists and was issued
	// less than resendAfter before now it fails with *TooSoonError.
	Put(ctx context.Context, key string, rec Record, resendAfter time.Duration, now time.Time) error

	// Take verifies secretHash against the record at key. Checks run in
	// order: missing (ErrNotFound), expired (deleted, ErrExpired), attempts
	// used up (deleted, ErrExhausted), match (deleted, nil). A mismatch
	// increments Attempts and returns the updated record with ErrMismatch.
	Take(ctx context.Context, key string, secretHash [32]byte, now time.Time) (Record, error)

	// Peek returns the record without changing it. An expired record is
	// removed and reported as ErrNotFound.
	Peek(ctx context.Context, key string, now time.Time) (Record, error)

	// Discard removes the record at key only if it is the one issued at
	// issuedAt.
	Discard(ctx context.Context, key string, issuedAt time.Time) (bool, error)

	// Delete removes the record at key unconditionally.
	Delete(ctx context.Context, key string) (bool, error)

	// Sweep removes expired records whose key starts with prefix.
	Sweep(ctx context.Context, prefix string, now time.Time) (int, error)
}

func sameIssue(a, b time.Time) bool {
	return a.UnixMilli() == b.UnixMilli()
}
