package httpapi

import (
	"math"
	"time"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/MrEthical07/eduAuth/session"
	"github.com/MrEthical07/eduAuth/store"
)

type registerBody struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     store.Role `json:"role"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyBody struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}

type resendBody struct {
	UserID string `json:"userId"`
}

type resetRequestBody struct {
	Email string `json:"email"`
}

type resetConfirmBody struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type changePasswordBody struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type twoFactorToggleBody struct {
	Enabled *bool `json:"enabled"`
}

// identityBody keeps the "_id" key the web client already reads.
type identityBody struct {
	ID               string     `json:"_id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Role             store.Role `json:"role"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	CreatedAt        time.Time  `json:"createdAt"`
	Token            string     `json:"token,omitempty"`
}

type pendingTwoFactorBody struct {
	Message     string `json:"message"`
	Requires2FA bool   `json:"requires2FA"`
	UserID      string `json:"userId"`
	MaskedEmail string `json:"maskedEmail"`
	Email       string `json:"email"`
}

type profileBody struct {
	identityBody
	ActiveSessions []session.Descriptor `json:"activeSessions"`
}

type noPendingCodeBody struct {
	HasPendingCode bool `json:"hasPendingCode"`
}

// pendingCodeBody always carries the counters, zero included. The masked
// address is repeated under "email" for the existing web client.
type pendingCodeBody struct {
	HasPendingCode bool   `json:"hasPendingCode"`
	TimeRemaining  int    `json:"timeRemaining"`
	AttemptsUsed   int    `json:"attemptsUsed"`
	MaxAttempts    int    `json:"maxAttempts"`
	MaskedEmail    string `json:"maskedEmail"`
	Email          string `json:"email"`
}

func identityOf(id eduAuth.Identity, token string) identityBody {
	return identityBody{
		ID:               id.ID,
		Name:             id.Name,
		Email:            id.Email,
		Role:             id.Role,
		TwoFactorEnabled: id.TwoFactorEnabled,
		CreatedAt:        id.CreatedAt,
		Token:            token,
	}
}

// loginResponse shapes a login outcome. The pending variant only ever
// carries the masked address.
func loginResponse(res *eduAuth.LoginResult) interface{} {
	if res.Requires2FA {
		return pendingTwoFactorBody{
			Message:     "Verification code sent to your email",
			Requires2FA: true,
			UserID:      res.UserID,
			MaskedEmail: res.MaskedEmail,
			Email:       res.MaskedEmail,
		}
	}
	return identityOf(res.User, res.Token)
}

func statusBody(st eduAuth.TwoFactorStatus) interface{} {
	if !st.HasPendingCode {
		return noPendingCodeBody{}
	}
	return pendingCodeBody{
		HasPendingCode: true,
		TimeRemaining:  int(math.Ceil(st.TimeRemaining.Seconds())),
		AttemptsUsed:   st.AttemptsUsed,
		MaxAttempts:    st.MaxAttempts,
		MaskedEmail:    st.MaskedEmail,
		Email:          st.MaskedEmail,
	}
}
