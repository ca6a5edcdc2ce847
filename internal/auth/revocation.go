package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// RevocationRegistry records token IDs invalidated before their natural
// expiry. Each entry keeps the token's expiry so it can be dropped once the
// token would fail validation anyway.
//
// Safe for concurrent use; a Revoke is visible to every IsRevoked call
// that starts after it returns.
type RevocationRegistry struct {
	entries *xsync.MapOf[string, time.Time]
	now     func() time.Time
}

// NewRevocationRegistry creates an empty registry. A nil clock uses time.Now.
func NewRevocationRegistry(now func() time.Time) *RevocationRegistry {
	if now == nil {
		now = time.Now
	}
	return &RevocationRegistry{
		entries: xsync.NewMapOf[string, time.Time](),
		now:     now,
	}
}

// Revoke marks id as revoked until expiresAt. Revoking an id twice keeps
// the later expiry.
func (r *RevocationRegistry) Revoke(id string, expiresAt time.Time) {
	if id == "" {
		return
	}
	r.entries.Compute(id, func(old time.Time, loaded bool) (time.Time, bool) {
		if loaded && old.After(expiresAt) {
			return old, false
		}
		return expiresAt, false
	})
}

// IsRevoked reports whether id has been revoked.
func (r *RevocationRegistry) IsRevoked(id string) bool {
	_, ok := r.entries.Load(id)
	return ok
}

// Prune drops entries whose token has expired as of now and returns how
// many were removed.
func (r *RevocationRegistry) Prune(now time.Time) int {
	removed := 0
	r.entries.Range(func(id string, _ time.Time) bool {
		r.entries.Compute(id, func(exp time.Time, loaded bool) (time.Time, bool) {
			if loaded && !now.Before(exp) {
				removed++
				return exp, true
			}
			return exp, !loaded
		})
		return true
	})
	return removed
}

// Len returns the number of revoked ids currently held.
func (r *RevocationRegistry) Len() int {
	return r.entries.Size()
}

// Run prunes on every tick until ctx is cancelled.
func (r *RevocationRegistry) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	runPruneLoop(ctx, interval, logger, "revocations", func() int {
		return r.Prune(r.now())
	})
}

// runPruneLoop calls prune on a ticker until ctx is done.
func runPruneLoop(ctx context.Context, interval time.Duration, logger *slog.Logger, store string, prune func() int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := prune(); n > 0 && logger != nil {
				logger.Debug("pruned expired entries", "store", store, "removed", n)
			}
		}
	}
}
