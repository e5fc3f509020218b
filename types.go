package eduAuth

import (
	"time"

	"github.com/MrEthical07/eduAuth/session"
	"github.com/MrEthical07/eduAuth/store"
)

// RegisterRequest is the input of [Engine.Register]. An empty Role takes the
// configured default.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Role     store.Role
}

// LoginRequest is the input of [Engine.Login]. A non-empty RequiredRole
// rejects identities of any other role with [ErrRoleMismatch].
type LoginRequest struct {
	Email        string
	Password     string
	RequiredRole store.Role
}

// Identity is the public projection of a user record.
type Identity struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Role             store.Role `json:"role"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func identityOf(u *store.User) Identity {
	return Identity{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		Role:             u.Role,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
	}
}

// LoginResult is returned by Register, Login and VerifyTwoFactor.
//
// When Requires2FA is set only UserID and MaskedEmail are filled and a code
// has been mailed. The full address is never returned before the second
// factor. Otherwise Token, User and Session describe the new session.
type LoginResult struct {
	Requires2FA bool
	UserID      string
	MaskedEmail string

	Token   string
	User    Identity
	Session session.Descriptor
}

// Profile is an identity together with its stored sessions.
type Profile struct {
	Identity
	ActiveSessions []session.Descriptor `json:"activeSessions"`
}

// TwoFactorStatus reports the pending login code of a user. Only
// HasPendingCode is set when there is none.
type TwoFactorStatus struct {
	HasPendingCode bool
	TimeRemaining  time.Duration
	AttemptsUsed   int
	MaxAttempts    int
	MaskedEmail    string
}

// AuthResult is what a valid bearer token proves.
type AuthResult struct {
	UserID    string
	SessionID string
	Role      store.Role
	ExpiresAt time.Time
}
