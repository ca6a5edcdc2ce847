package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T, clock *fakeClock) (*Guard, *TokenIssuer, *RevocationRegistry) {
	t.Helper()
	issuer := newTestIssuer(t, clock)
	reg := NewRevocationRegistry(clock.Now)
	return NewGuard(issuer, reg, "access_token_cookie"), issuer, reg
}

func TestGuard_RequireAuth_BearerHeader(t *testing.T) {
	guard, issuer, _ := newTestGuard(t, newFakeClock())

	issued, err := issuer.Issue("a@x.com", RoleTenant, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Token)

	claims, err := guard.RequireAuth(req)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email())
	assert.Equal(t, issued.ID, claims.ID)
}

func TestGuard_RequireAuth_Cookie(t *testing.T) {
	guard, issuer, _ := newTestGuard(t, newFakeClock())

	issued, err := issuer.Issue("a@x.com", RoleAdmin, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: "access_token_cookie", Value: issued.Token})

	claims, err := guard.RequireAuth(req)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestGuard_RequireAuth_Failures(t *testing.T) {
	clock := newFakeClock()
	guard, issuer, _ := newTestGuard(t, clock)

	issued, err := issuer.Issue("a@x.com", RoleTenant, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"no credentials", "", ErrTokenMissing},
		{"wrong scheme", "Basic " + issued.Token, ErrTokenInvalid},
		{"no scheme", issued.Token, ErrTokenInvalid},
		{"empty bearer", "Bearer ", ErrTokenMissing},
		{"garbage bearer", "Bearer abc.def.ghi", ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			_, err := guard.RequireAuth(req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGuard_RevokedTokenRejectedWhileOtherwiseValid(t *testing.T) {
	clock := newFakeClock()
	guard, issuer, reg := newTestGuard(t, clock)

	issued, err := issuer.Issue("a@x.com", RoleTenant, time.Hour)
	require.NoError(t, err)

	claims, err := guard.Verify(issued.Token)
	require.NoError(t, err)

	guard.Logout(claims)

	// Signature and expiry are still fine on their own.
	_, err = issuer.Validate(issued.Token)
	require.NoError(t, err)
	assert.True(t, reg.IsRevoked(issued.ID))

	_, err = guard.Verify(issued.Token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// Other tokens for the same principal are unaffected.
	other, err := issuer.Issue("a@x.com", RoleTenant, time.Hour)
	require.NoError(t, err)
	_, err = guard.Verify(other.Token)
	assert.NoError(t, err)
}

func TestGuard_ExpiredTokenRejected(t *testing.T) {
	clock := newFakeClock()
	guard, issuer, _ := newTestGuard(t, clock)

	issued, err := issuer.Issue("a@x.com", RoleTenant, time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = guard.Verify(issued.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRequireRole(t *testing.T) {
	admin := &Claims{Role: RoleAdmin}
	tenant := &Claims{Role: RoleTenant}
	bogus := &Claims{Role: "owner"}

	assert.NoError(t, RequireRole(admin, RoleAdmin))
	assert.NoError(t, RequireRole(tenant, RoleTenant))
	assert.ErrorIs(t, RequireRole(tenant, RoleAdmin), ErrForbidden)
	assert.ErrorIs(t, RequireRole(admin, RoleTenant), ErrForbidden)
	assert.ErrorIs(t, RequireRole(bogus, "owner"), ErrForbidden)
	assert.ErrorIs(t, RequireRole(nil, RoleAdmin), ErrTokenMissing)
}

func TestClaimsContext(t *testing.T) {
	assert.Nil(t, ClaimsFromContext(context.Background()))

	claims := &Claims{Role: RoleTenant}
	ctx := WithClaims(context.Background(), claims)
	assert.Same(t, claims, ClaimsFromContext(ctx))
}
