package auth

import (
	"context"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetTokenStore_CreateConsumeRoundTrip(t *testing.T) {
	store := NewResetTokenStore(30*time.Minute, newFakeClock().Now)

	token, err := store.Create(" Tenant@X.com", RoleTenant)
	require.NoError(t, err)

	raw, err := hex.DecodeString(token)
	require.NoError(t, err)
	assert.Len(t, raw, 32, "token carries 256 bits of entropy")

	grant, err := store.Consume(token, "")
	require.NoError(t, err)
	assert.Equal(t, ResetGrant{Email: "tenant@x.com", Role: RoleTenant}, grant)
	assert.Equal(t, 0, store.Len())
}

func TestResetTokenStore_SingleUse(t *testing.T) {
	store := NewResetTokenStore(time.Hour, nil)

	token, err := store.Create("a@x.com", RoleTenant)
	require.NoError(t, err)

	_, err = store.Consume(token, "")
	require.NoError(t, err)

	_, err = store.Consume(token, "")
	assert.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestResetTokenStore_UnknownToken(t *testing.T) {
	store := NewResetTokenStore(time.Hour, nil)

	_, err := store.Consume("deadbeef", "")
	assert.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestResetTokenStore_ExpiredTokenIsDestroyed(t *testing.T) {
	clock := newFakeClock()
	store := NewResetTokenStore(10*time.Minute, clock.Now)

	token, err := store.Create("a@x.com", RoleTenant)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)

	_, err = store.Consume(token, "")
	assert.ErrorIs(t, err, ErrResetTokenInvalid)
	assert.Equal(t, 0, store.Len(), "expired entry must not survive a consume attempt")
}

func TestResetTokenStore_Prune(t *testing.T) {
	clock := newFakeClock()
	store := NewResetTokenStore(10*time.Minute, clock.Now)

	old, err := store.Create("old@x.com", RoleTenant)
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)
	fresh, err := store.Create("fresh@x.com", RoleTenant)
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, store.Prune(clock.Now()))

	_, err = store.Consume(old, "")
	assert.ErrorIs(t, err, ErrResetTokenInvalid)
	grant, err := store.Consume(fresh, "")
	require.NoError(t, err)
	assert.Equal(t, "fresh@x.com", grant.Email)
}

func TestResetTokenStore_RunStopsOnCancel(t *testing.T) {
	clock := newFakeClock()
	store := NewResetTokenStore(time.Minute, clock.Now)
	_, err := store.Create("a@x.com", RoleTenant)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		store.Run(ctx, 5*time.Millisecond, nil)
	}()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	wg.Wait()
}

func TestResetTokenStore_TokensAreDistinct(t *testing.T) {
	store := NewResetTokenStore(time.Hour, nil)

	a, err := store.Create("same@x.com", RoleTenant)
	require.NoError(t, err)
	b, err := store.Create("same@x.com", RoleTenant)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, store.Len())
}

func TestResetTokenStore_ConsumeScopedToRole(t *testing.T) {
	store := NewResetTokenStore(time.Hour, nil)

	tenantToken, err := store.Create("same@x.com", RoleTenant)
	require.NoError(t, err)
	adminToken, err := store.Create("same@x.com", RoleAdmin)
	require.NoError(t, err)

	_, err = store.Consume(tenantToken, RoleAdmin)
	require.ErrorIs(t, err, ErrResetTokenInvalid)
	assert.Equal(t, 2, store.Len(), "a token of another role stays usable")

	grant, err := store.Consume(adminToken, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, ResetGrant{Email: "same@x.com", Role: RoleAdmin}, grant)

	grant, err = store.Consume(tenantToken, "")
	require.NoError(t, err)
	assert.Equal(t, RoleTenant, grant.Role)
}
