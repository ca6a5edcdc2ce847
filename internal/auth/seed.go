package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for a generated seed password.
const seedPasswordBytes = 16

// SeedAdmin creates the first administrator if no administrator exists.
// When password is empty a random one is generated and logged; it must be
// changed immediately. Returns the password used, or "" if seeding was skipped.
func SeedAdmin(ctx context.Context, repo PrincipalRepository, email, password string, logger *slog.Logger) (string, error) {
	if email == "" {
		return "", nil
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	count, err := repo.Count(ctx, RoleAdmin)
	if err != nil {
		return "", fmt.Errorf("checking admin count: %w", err)
	}
	if count > 0 {
		logger.Info("administrators exist, skipping admin seed")
		return "", nil
	}

	generated := password == ""
	if generated {
		b := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(b); err != nil { //nolint:govet // shadow: err re-declared in nested scope
			return "", fmt.Errorf("generating seed password: %w", err)
		}
		password = hex.EncodeToString(b)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &Principal{
		Role:         RoleAdmin,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	}
	if err := repo.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	if generated {
		logger.Warn("seed admin account created",
			"email", admin.Email,
			"initial_password", password,
			"action_required", "change this password immediately",
		)
	} else {
		logger.Info("seed admin account created", "email", admin.Email)
	}
	return password, nil
}
