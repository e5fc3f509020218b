package session

import (
	"context"
	"errors"
	"time"
)

// ErrVersionConflict is returned by [Repository.SaveSessions] when the stored
// list changed since it was loaded.
var ErrVersionConflict = errors.New("session list version conflict")

// ErrRetriesExhausted is returned by [Registry] when concurrent writers kept
// winning the compare-and-swap race.
var ErrRetriesExhausted = errors.New("session list update retries exhausted")

// Descriptor is one logged-in device or browser instance of an identity.
type Descriptor struct {
	ID         string    `json:"sessionId"`
	DeviceInfo string    `json:"deviceInfo"`
	IPAddress  string    `json:"ipAddress"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}

// Repository loads and stores the session list of one identity.
//
// SaveSessions must only write when the stored version still equals expected,
// and bump it on success. Single-row atomicity is all that is required.
type Repository interface {
	LoadSessions(ctx context.Context, userID string) ([]Descriptor, uint64, error)
	SaveSessions(ctx context.Context, userID string, expected uint64, sessions []Descriptor) error
}

// Limits bounds a session list.
type Limits struct {
	MaxSessions int
	MaxAge      time.Duration
}

// DefaultLimits returns ten sessions aged out after thirty days.
func DefaultLimits() Limits {
	return Limits{
		MaxSessions: 10,
		MaxAge:      30 * 24 * time.Hour,
	}
}
