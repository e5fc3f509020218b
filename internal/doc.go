// Package internal contains helpers private to eduAuth: random codes and
// reset token encoding.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - challenge: ephemeral token registry for 2FA codes and reset tokens
//   - rate: Redis-backed login throttle
//   - server: service configuration, logging and dependency wiring
//
// # What this package must NOT do
//
//   - Export types that appear in the public eduAuth API.
//   - Be imported by any package outside the eduAuth module.
package internal
