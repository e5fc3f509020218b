// Package eduAuth is the authentication engine of the e-learning platform:
// email and password accounts with student, teacher and admin roles,
// emailed six digit login codes, bounded per-user session lists and
// long-lived JWT bearer tokens.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// eduAuth is the public surface. It exposes [Engine], [Builder], [Config] and
// value types ([LoginResult], [Profile], [TwoFactorStatus]). Pending code
// storage, the login throttle and audit dispatch live under internal/ and
// are never exported.
//
// # Storage
//
// Identities and their session lists live in a [store.Store] (in memory or
// gorm). Pending verification codes and password reset tokens live in a
// challenge store: in process by default, or Redis when [Builder.WithRedis]
// is used so several instances share them.
//
// # Token validity
//
// [ModeJWTOnly] accepts any correctly signed, unexpired token, so a token
// outlives a logout-all. [ModeStrict] also requires its session id to still
// be listed for the user.
package eduAuth
