package auth

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/database"
	"github.com/LeaderSteve84/habitatT-backend/migrations"
)

const testSecret = "test-secret-key-at-least-32-chars!"

// testDB creates a temporary SQLite database with the embedded migrations applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(t.Context(), migrations.FS); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db.DB
}

// seedPrincipal inserts a principal with the given password and returns it.
func seedPrincipal(t *testing.T, repo PrincipalRepository, role Role, email, password string, active bool) *Principal {
	t.Helper()

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	p := &Principal{Role: role, Email: email, PasswordHash: hash, Active: active}
	if err := repo.Create(t.Context(), p); err != nil {
		t.Fatalf("creating principal %s: %v", email, err)
	}
	return p
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestIssuer(t *testing.T, clock *fakeClock) *TokenIssuer {
	t.Helper()

	issuer, err := NewTokenIssuer(TokenConfig{
		Secret:      []byte(testSecret),
		Issuer:      "habitat-test",
		DefaultTTL:  time.Hour,
		ExtendedTTL: 7 * 24 * time.Hour,
		Now:         clock.Now,
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}
	return issuer
}

func claimsFor(email string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: email, ID: "jti-test"}
}
