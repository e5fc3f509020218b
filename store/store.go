// Package store defines the credential store contract: identity records,
// roles and the lookup/mutation operations the authentication engine needs.
//
// Implementations must enforce normalized-email uniqueness themselves and
// must return [ErrNotFound] rather than a nil record when an identity is
// absent, so callers can tell "no such user" apart from transport failures.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/eduAuth/session"
)

var (
	// ErrNotFound is returned when no identity matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when the normalized email is already taken.
	ErrDuplicateEmail = errors.New("user already exists with this email")
)

// Role is the account type of an identity. It is fixed at creation.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	default:
		return false
	}
}

// User is a persisted identity. PasswordHash never leaves the engine.
type User struct {
	ID               string
	Name             string
	Email            string
	PasswordHash     string
	Role             Role
	TwoFactorEnabled bool
	Sessions         []session.Descriptor
	SessionsVersion  uint64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Store persists identities and their embedded session lists.
type Store interface {
	session.Repository

	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) error
	DeleteUser(ctx context.Context, id string) error
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
