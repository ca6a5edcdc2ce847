package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the payload of an access token. Subject carries the email and
// ID carries the jti used as the revocation key.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// Email returns the subject claim.
func (c *Claims) Email() string {
	return c.Subject
}

// Expiry returns the absolute expiry, or the zero time if unset.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedToken is a freshly signed access token.
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// TokenConfig configures a TokenIssuer.
type TokenConfig struct {
	Secret      []byte
	Issuer      string
	DefaultTTL  time.Duration
	ExtendedTTL time.Duration

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// TokenIssuer mints and validates HS256 access tokens.
type TokenIssuer struct {
	secret      []byte
	issuer      string
	defaultTTL  time.Duration
	extendedTTL time.Duration
	now         func() time.Time
	parser      *jwt.Parser
}

// NewTokenIssuer validates cfg and builds an issuer.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.DefaultTTL <= 0 {
		return nil, errors.New("default token TTL must be positive")
	}
	if cfg.ExtendedTTL < cfg.DefaultTTL {
		cfg.ExtendedTTL = cfg.DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(cfg.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &TokenIssuer{
		secret:      cfg.Secret,
		issuer:      cfg.Issuer,
		defaultTTL:  cfg.DefaultTTL,
		extendedTTL: cfg.ExtendedTTL,
		now:         cfg.Now,
		parser:      jwt.NewParser(opts...),
	}, nil
}

// TTL maps the "remember me" flag to a token lifetime.
func (t *TokenIssuer) TTL(rememberMe bool) time.Duration {
	if rememberMe {
		return t.extendedTTL
	}
	return t.defaultTTL
}

// Issue signs a token for (email, role) that expires after ttl. Every
// token carries a fresh UUIDv4 jti.
func (t *TokenIssuer) Issue(email string, role Role, ttl time.Duration) (*IssuedToken, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if ttl <= 0 {
		ttl = t.defaultTTL
	}

	now := t.now().Truncate(time.Second)
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   NormalizeEmail(email),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	return &IssuedToken{Token: signed, ID: claims.ID, ExpiresAt: expiresAt}, nil
}

// Validate checks signature, expiry and structure. It does not consult
// revocation. Expired tokens return ErrTokenExpired; every other failure
// wraps ErrTokenInvalid.
func (t *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := t.parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing token id", ErrTokenInvalid)
	}

	return claims, nil
}
