// Package storetest holds behavior tests shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/eduAuth/session"
	"github.com/MrEthical07/eduAuth/store"
)

// Factory returns a fresh, empty store for one test.
type Factory func(t *testing.T) store.Store

// Run executes the shared suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndLookup", func(t *testing.T) { testCreateAndLookup(t, newStore(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("Mutations", func(t *testing.T) { testMutations(t, newStore(t)) })
	t.Run("SessionsCompareAndSwap", func(t *testing.T) { testSessionsCAS(t, newStore(t)) })
	t.Run("DeleteCascadesSessions", func(t *testing.T) { testDeleteCascades(t, newStore(t)) })
	t.Run("ConcurrentRegistryAdds", func(t *testing.T) { testConcurrentRegistry(t, newStore(t)) })
}

// NewUser builds a valid user with a random id.
func NewUser(email string) *store.User {
	return &store.User{
		ID:           uuid.NewString(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		Role:         store.RoleStudent,
	}
}

func testCreateAndLookup(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser("  Alice@Example.COM ")
	require.NoError(t, s.CreateUser(ctx, u))

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, "alice@example.com", byEmail.Email)
	assert.Equal(t, store.RoleStudent, byEmail.Role)
	assert.False(t, byEmail.TwoFactorEnabled)
	assert.Empty(t, byEmail.Sessions)

	byID, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, byEmail.Email, byID.Email)
	assert.Equal(t, u.PasswordHash, byID.PasswordHash)
}

func testDuplicateEmail(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, NewUser("bob@example.com")))

	err := s.CreateUser(ctx, NewUser("BOB@example.com"))
	assert.True(t, errors.Is(err, store.ErrDuplicateEmail), "expected ErrDuplicateEmail, got %v", err)
}

func testNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetUserByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.SetTwoFactorEnabled(ctx, uuid.NewString(), true), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, uuid.NewString()), store.ErrNotFound)
	_, _, err = s.LoadSessions(ctx, uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testMutations(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser("carol@example.com")
	require.NoError(t, s.CreateUser(ctx, u))

	require.NoError(t, s.SetTwoFactorEnabled(ctx, u.ID, true))
	require.NoError(t, s.UpdatePasswordHash(ctx, u.ID, "new-hash"))

	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.TwoFactorEnabled)
	assert.Equal(t, "new-hash", got.PasswordHash)
}

func testSessionsCAS(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser("dave@example.com")
	require.NoError(t, s.CreateUser(ctx, u))

	list, version, err := s.LoadSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	now := time.Now().UTC().Truncate(time.Second)
	d := session.Descriptor{ID: "sid-1", DeviceInfo: "Mac • Safari", IPAddress: "10.0.0.1", CreatedAt: now, LastActive: now}
	require.NoError(t, s.SaveSessions(ctx, u.ID, version, []session.Descriptor{d}))

	err = s.SaveSessions(ctx, u.ID, version, nil)
	assert.ErrorIs(t, err, session.ErrVersionConflict)

	list, next, err := s.LoadSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, version+1, next)
	require.Len(t, list, 1)
	assert.Equal(t, "sid-1", list[0].ID)
	assert.Equal(t, "Mac • Safari", list[0].DeviceInfo)
	assert.True(t, list[0].LastActive.Equal(now))
}

func testDeleteCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser("erin@example.com")
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, s.SaveSessions(ctx, u.ID, 0, []session.Descriptor{{ID: "x", LastActive: time.Now()}}))

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, _, err := s.LoadSessions(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The address is free again once the identity is gone.
	require.NoError(t, s.CreateUser(ctx, NewUser("erin@example.com")))
}

func testConcurrentRegistry(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser("frank@example.com")
	require.NoError(t, s.CreateUser(ctx, u))

	reg := session.NewRegistry(s, session.DefaultLimits())
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := session.NewID()
			if err != nil {
				t.Errorf("NewID: %v", err)
				return
			}
			if _, err := reg.Add(ctx, u.ID, session.Descriptor{ID: id, CreatedAt: now, LastActive: now}, now); err != nil {
				t.Errorf("Add: %v", err)
			}
		}()
	}
	wg.Wait()

	list, _, err := s.LoadSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, list, 10)
}
