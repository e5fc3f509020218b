// Package rate throttles failed logins with Redis fixed-window counters.
//
// The first failure in a window creates the counter with INCR and sets its
// TTL. Later failures only increment it, so the window does not slide.
// Keys:
//   - elf:  failed logins per normalized email
//   - elfi: failed logins per client IP (optional)
//
// Policy decisions, such as which failures count, belong to the caller.
package rate
