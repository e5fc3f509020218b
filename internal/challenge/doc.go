// Package challenge is the ephemeral token registry behind two-factor codes
// and password reset tokens.
//
// A [Store] keeps at most one [Record] per key and makes every operation on a
// key atomic with respect to the others: issuing, verifying, discarding and
// sweeping the same key never interleave. [MemoryStore] serves a single
// process; [RedisStore] shares state between instances. A [Registry] binds a
// namespace and a [Policy] on top of a Store.
//
// Secrets are never stored. Records hold the SHA-256 of the secret and
// verification compares digests in constant time.
package challenge
