// Package session models the bounded list of active sessions attached to an
// identity and the registry that mutates it.
//
// # Invariants
//
// A list never holds more than [Limits.MaxSessions] descriptors. Descriptors
// whose LastActive is older than [Limits.MaxAge] are pruned before a new one
// is appended, and overflow is evicted oldest first.
//
// # Architecture boundaries
//
// This package owns [Descriptor], the pure list operations and [Registry].
// Persistence is reached only through [Repository]; the package does not know
// how identities are stored and does not issue tokens.
//
// # What this package must NOT do
//
//   - Import eduAuth, jwt or any store implementation (no upward imports).
//   - Touch LastActive outside of session creation.
package session
