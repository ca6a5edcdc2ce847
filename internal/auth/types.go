package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of principal kinds that can hold a token.
type Role string

const (
	// RoleAdmin manages properties, tenants and other administrators.
	RoleAdmin Role = "admin"

	// RoleTenant is a resident. Inactive tenants cannot log in.
	RoleTenant Role = "tenant"
)

// Roles lists every valid Role in lookup order for email-only searches.
var Roles = []Role{RoleTenant, RoleAdmin}

// ParseRole converts a wire value into a Role. Matching is exact after
// trimming; anything outside the enum is a validation error.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.TrimSpace(s)); r {
	case RoleAdmin, RoleTenant:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
}

// Valid reports whether r is a member of the enum.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTenant
}

// Principal is an account that can authenticate.
type Principal struct {
	ID           string    `json:"id"`
	Role         Role      `json:"role"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialised
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
// Emails are stored and looked up in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Sentinel errors for auth operations. Callers branch with errors.Is;
// anything not wrapping one of these is a persistence failure.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPrincipalInactive  = errors.New("account is not active")
	ErrPrincipalNotFound  = errors.New("principal not found")
	ErrPrincipalExists    = errors.New("principal already exists")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrTokenMissing       = errors.New("no token in request")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrResetTokenInvalid  = errors.New("invalid or expired reset token")
	ErrPasswordMismatch   = errors.New("passwords do not match")
)
