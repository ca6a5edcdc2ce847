package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// resetTokenBytes is the entropy of a reset token (256 bits).
const resetTokenBytes = 32

type resetEntry struct {
	grant     ResetGrant
	createdAt time.Time
	expiresAt time.Time
}

// ResetGrant is the principal a reset token was issued for. The same email
// may exist once per role, so both are needed to find the account.
type ResetGrant struct {
	Email string
	Role  Role
}

// ResetTokenStore holds single-use password recovery tokens. A token maps
// to one (email, role) pair and is destroyed by the first successful or
// expired Consume.
type ResetTokenStore struct {
	entries *xsync.MapOf[string, resetEntry]
	ttl     time.Duration
	now     func() time.Time
}

// NewResetTokenStore creates a store whose tokens live for ttl.
// A nil clock uses time.Now.
func NewResetTokenStore(ttl time.Duration, now func() time.Time) *ResetTokenStore {
	if now == nil {
		now = time.Now
	}
	return &ResetTokenStore{
		entries: xsync.NewMapOf[string, resetEntry](),
		ttl:     ttl,
		now:     now,
	}
}

// Create stores a new random token for the principal (email, role) and
// returns it.
func (s *ResetTokenStore) Create(email string, role Role) (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating reset token: %w", err)
	}
	token := hex.EncodeToString(b)

	now := s.now()
	s.entries.Store(token, resetEntry{
		grant:     ResetGrant{Email: NormalizeEmail(email), Role: role},
		createdAt: now,
		expiresAt: now.Add(s.ttl),
	})
	return token, nil
}

// Consume atomically removes token and returns its grant. Only one of any
// number of concurrent callers can succeed. Unknown, already used and
// expired tokens return ErrResetTokenInvalid.
//
// A non-empty role restricts the token to that role. A token issued for
// another role is reported invalid and stays usable on its own route.
func (s *ResetTokenStore) Consume(token string, role Role) (ResetGrant, error) {
	now := s.now()
	var (
		grant ResetGrant
		ok    bool
	)
	s.entries.Compute(token, func(e resetEntry, loaded bool) (resetEntry, bool) {
		if !loaded {
			return e, true
		}
		if !now.Before(e.expiresAt) {
			return e, true
		}
		if role != "" && e.grant.Role != role {
			return e, false
		}
		grant, ok = e.grant, true
		return e, true
	})
	if !ok {
		return ResetGrant{}, ErrResetTokenInvalid
	}
	return grant, nil
}

// Prune drops expired tokens and returns how many were removed.
func (s *ResetTokenStore) Prune(now time.Time) int {
	removed := 0
	s.entries.Range(func(token string, _ resetEntry) bool {
		s.entries.Compute(token, func(e resetEntry, loaded bool) (resetEntry, bool) {
			if loaded && !now.Before(e.expiresAt) {
				removed++
				return e, true
			}
			return e, !loaded
		})
		return true
	})
	return removed
}

// Len returns the number of outstanding tokens.
func (s *ResetTokenStore) Len() int {
	return s.entries.Size()
}

// TTL returns the lifetime given to new tokens.
func (s *ResetTokenStore) TTL() time.Duration {
	return s.ttl
}

// Run prunes on every tick until ctx is cancelled.
func (s *ResetTokenStore) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	runPruneLoop(ctx, interval, logger, "reset_tokens", func() int {
		return s.Prune(s.now())
	})
}
