package auth

import (
	"context"
	"net/http"
	"strings"
)

// Guard is the request-time gate in front of protected operations. A token
// passes only if its signature and expiry are valid and its id has not
// been revoked.
type Guard struct {
	tokens     *TokenIssuer
	revoked    *RevocationRegistry
	cookieName string
}

// NewGuard composes a validator and a revocation registry. When cookieName
// is non-empty the token is also read from that cookie if the request has
// no Authorization header.
func NewGuard(tokens *TokenIssuer, revoked *RevocationRegistry, cookieName string) *Guard {
	return &Guard{tokens: tokens, revoked: revoked, cookieName: cookieName}
}

// RequireAuth extracts and verifies the caller's token.
func (g *Guard) RequireAuth(r *http.Request) (*Claims, error) {
	raw, err := g.extractToken(r)
	if err != nil {
		return nil, err
	}
	return g.Verify(raw)
}

// Verify validates a raw token string and checks revocation.
func (g *Guard) Verify(raw string) (*Claims, error) {
	claims, err := g.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}
	if g.revoked.IsRevoked(claims.ID) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// RequireRole fails with ErrForbidden unless claims carry the expected role.
func RequireRole(claims *Claims, role Role) error {
	if claims == nil {
		return ErrTokenMissing
	}
	switch claims.Role {
	case RoleAdmin, RoleTenant:
		if claims.Role == role {
			return nil
		}
		return ErrForbidden
	default:
		return ErrForbidden
	}
}

// Logout revokes the token described by claims for the rest of its lifetime.
func (g *Guard) Logout(claims *Claims) {
	g.revoked.Revoke(claims.ID, claims.Expiry())
}

// CookieName returns the cookie the guard reads tokens from.
func (g *Guard) CookieName() string {
	return g.cookieName
}

func (g *Guard) extractToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", ErrTokenInvalid
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}

	if g.cookieName != "" {
		if c, err := r.Cookie(g.cookieName); err == nil && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", ErrTokenMissing
}

type claimsContextKey struct{}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns the claims stored by WithClaims, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(*Claims)
	return claims
}
