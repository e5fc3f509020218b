// Package jwt signs and verifies the bearer tokens handed out after login.
//
// A token carries the user id, the session id and the role. Expiry, issuer
// and audience are checked on every parse; HS256 and Ed25519 are supported,
// with optional key rotation through a kid-indexed verify key set.
package jwt
