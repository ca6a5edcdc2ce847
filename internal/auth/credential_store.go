package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// CredentialStore verifies passwords against the principals held by a
// PrincipalRepository. The password hash never leaves this type.
type CredentialStore struct {
	repo   PrincipalRepository
	logger *slog.Logger
}

// NewCredentialStore wraps repo. A nil logger discards output.
func NewCredentialStore(repo PrincipalRepository, logger *slog.Logger) *CredentialStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CredentialStore{repo: repo, logger: logger}
}

// dummyHash is verified against when the principal does not exist so an
// unknown email costs the same Argon2id work as a wrong password.
var dummyHash = sync.OnceValue(func() string {
	h, err := HashPassword("habitat-timing-equaliser")
	if err != nil {
		return ""
	}
	return h
})

// Authenticate returns the principal for (email, role) when password
// matches its stored hash. Unknown principal and wrong password both
// return ErrInvalidCredentials. Inactive principals are returned with
// their Active flag false; the caller decides what that means for its role.
func (s *CredentialStore) Authenticate(ctx context.Context, email, password string, role Role) (*Principal, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	email = NormalizeEmail(email)

	p, err := s.repo.GetByEmail(ctx, role, email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			_, _ = VerifyPassword(password, dummyHash()) //nolint:errcheck // timing only
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up principal: %w", err)
	}

	ok, err := VerifyPassword(password, p.PasswordHash)
	if err != nil {
		// A corrupt stored hash must not be distinguishable from a bad password.
		s.logger.Error("stored password hash unreadable", "principal_id", p.ID, "error", err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if NeedsRehash(p.PasswordHash) {
		s.upgradeHash(ctx, p, password)
	}

	return p, nil
}

// upgradeHash replaces a legacy or outdated hash after a successful login.
// Failure is logged and the login proceeds.
func (s *CredentialStore) upgradeHash(ctx context.Context, p *Principal, password string) {
	newHash, err := HashPassword(password)
	if err != nil {
		s.logger.Warn("password rehash failed", "principal_id", p.ID, "error", err)
		return
	}
	if err := s.repo.UpdatePasswordHash(ctx, p.Role, p.Email, newHash); err != nil {
		s.logger.Warn("password rehash not stored", "principal_id", p.ID, "error", err)
		return
	}
	p.PasswordHash = newHash
	s.logger.Info("password hash upgraded", "principal_id", p.ID)
}

// UpdatePassword overwrites the stored hash for (email, role).
// Returns ErrPrincipalNotFound if no such principal exists.
func (s *CredentialStore) UpdatePassword(ctx context.Context, email string, role Role, newHash string) error {
	if err := s.repo.UpdatePasswordHash(ctx, role, NormalizeEmail(email), newHash); err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return ErrPrincipalNotFound
		}
		return fmt.Errorf("updating password: %w", err)
	}
	return nil
}

// FindByEmail searches every role, tenants first, for the given email.
func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	email = NormalizeEmail(email)
	for _, role := range Roles {
		p, err := s.repo.GetByEmail(ctx, role, email)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrPrincipalNotFound) {
			return nil, fmt.Errorf("looking up principal: %w", err)
		}
	}
	return nil, ErrPrincipalNotFound
}

// Lookup returns the principal for (email, role).
func (s *CredentialStore) Lookup(ctx context.Context, email string, role Role) (*Principal, error) {
	p, err := s.repo.GetByEmail(ctx, role, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("looking up principal: %w", err)
	}
	return p, nil
}
