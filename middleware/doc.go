// Package middleware exposes HTTP guards for bearer tokens issued by
// eduAuth.Engine.
//
// # Guards
//
//   - [Guard] validates with an explicit mode, [eduAuth.ModeInherit] for the
//     engine default.
//   - [RequireJWTOnly] checks signature and expiry only.
//   - [RequireStrict] also requires the session to still be listed.
//   - [RequireRole] rejects authenticated callers of other roles.
//
// Each guard reads the Authorization header, calls Engine.Validate, and
// injects the result into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself. How a rejection is written is up
// to the caller through [WithErrorWriter].
package middleware
