package challenge

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/eduAuth/internal"
)

// Policy bounds the records a Registry issues.
type Policy struct {
	TTL         time.Duration
	MaxAttempts int
	ResendAfter time.Duration
}

// Registry issues and verifies secrets for one namespace of a Store.
type Registry struct {
	store     Store
	namespace string
	policy    Policy
}

// NewRegistry binds namespace and policy over store.
func NewRegistry(store Store, namespace string, policy Policy) *Registry {
	return &Registry{
		store:     store,
		namespace: namespace,
		policy:    policy,
	}
}

// Namespace returns the key prefix used for every subject.
func (r *Registry) Namespace() string { return r.namespace }

// Policy returns the policy the registry was built with.
func (r *Registry) Policy() Policy { return r.policy }

func (r *Registry) key(subject string) string {
	return r.namespace + ":" + subject
}

// Issue stores a new record for subject holding the hash of secret. Any
// pending record is replaced unless it was issued less than ResendAfter ago,
// in which case a *TooSoonError is returned and the old record is kept.
func (r *Registry) Issue(ctx context.Context, subject, destination, secret string, now time.Time) (Record, error) {
	rec := Record{
		Subject:     subject,
		Destination: destination,
		SecretHash:  internal.HashSecret(secret),
		IssuedAt:    now,
		ExpiresAt:   now.Add(r.policy.TTL),
		MaxAttempts: uint16(r.policy.MaxAttempts),
	}
	if err := r.store.Put(ctx, r.key(subject), rec, r.policy.ResendAfter, now); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Verify checks secret against the pending record. A correct secret consumes
// the record. A wrong one uses up an attempt and returns the updated record
// together with ErrMismatch.
func (r *Registry) Verify(ctx context.Context, subject, secret string, now time.Time) (Record, error) {
	return r.store.Take(ctx, r.key(subject), internal.HashSecret(secret), now)
}

// Status reports the pending record, if any. Expired records are treated as
// absent.
func (r *Registry) Status(ctx context.Context, subject string, now time.Time) (Record, bool, error) {
	rec, err := r.store.Peek(ctx, r.key(subject), now)
	if errors.Is(err, ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Discard removes rec only if it is still the pending record for its
// subject.
func (r *Registry) Discard(ctx context.Context, rec Record) (bool, error) {
	return r.store.Discard(ctx, r.key(rec.Subject), rec.IssuedAt)
}

// Forget removes whatever record is pending for subject.
func (r *Registry) Forget(ctx context.Context, subject string) (bool, error) {
	return r.store.Delete(ctx, r.key(subject))
}

// Sweep removes expired records in this namespace.
func (r *Registry) Sweep(ctx context.Context, now time.Time) (int, error) {
	return r.store.Sweep(ctx, r.namespace+":", now)
}
