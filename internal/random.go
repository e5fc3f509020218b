package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
	"strconv"

	"github.com/google/uuid"
)

const (
	codeMin = 100000
	codeMax = 999999

	resetSecretSize   = 32
	resetTokenRawSize = 16 + resetSecretSize
)

// ErrMalformedResetToken is returned when a reset token cannot be decoded.
var ErrMalformedResetToken = errors.New("malformed reset token")

var codeSpan = big.NewInt(codeMax - codeMin + 1)

// NewCode returns a six digit code drawn uniformly from [100000, 999999]
// using crypto/rand.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

// HashSecret is the digest stored in place of codes and reset secrets.
func HashSecret(secret string) [32]byte {
	return sha256.Sum256([]byte(secret))
}

// NewResetSecret returns 32 random bytes.
func NewResetSecret() ([resetSecretSize]byte, error) {
	var secret [resetSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// EncodeResetToken packs the 16 UUID bytes of userID and secret into one
// base64url string.
func EncodeResetToken(userID string, secret [resetSecretSize]byte) (string, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return "", err
	}

	var raw [resetTokenRawSize]byte
	copy(raw[:16], uid[:])
	copy(raw[16:], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeResetToken reverses [EncodeResetToken]. The secret is returned in
// the string form passed to [HashSecret].
func DecodeResetToken(token string) (string, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != resetTokenRawSize {
		return "", "", ErrMalformedResetToken
	}

	uid, err := uuid.FromBytes(raw[:16])
	if err != nil {
		return "", "", ErrMalformedResetToken
	}
	return uid.String(), string(raw[16:]), nil
}

// ResetSecretString converts a secret to the form compared by the registry.
func ResetSecretString(secret [resetSecretSize]byte) string {
	return string(secret[:])
}
