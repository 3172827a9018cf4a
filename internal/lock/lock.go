// Package lock implements the single global cross-process lock (spec.md
// section 1 and section 5's "Shared resources") that guards a country's
// local databases for the duration of one import.
//
// Built on gofrs/flock.Flock (sourced from the untoldecay-BeadsLog
// example's go.mod) instead of a bespoke file-mutex; the bounded-wait
// retry loop reuses the ratelimit.RateLimiter backoff configuration
// (internal/ratelimit), generalized from HTTP-429 backoff to
// lock-contention backoff.
package lock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ambre-dwings/reconcile/internal/ratelimit"
	"github.com/gofrs/flock"
)

// Handle is a held lock; callers must call Release exactly once.
type Handle struct {
	flock      *flock.Flock
	leasePath  string
	expiresAt  time.Time
}

// Release unlocks the underlying file lock and removes the lease
// sidecar file. Safe to call once; a second call is a no-op error the
// caller may ignore.
func (h *Handle) Release() error {
	_ = os.Remove(h.leasePath)
	return h.flock.Unlock()
}

// ExpiresAt reports when this handle's lease is due to expire. Callers
// holding a lock past this time risk a concurrent acquirer believing the
// lease is stale.
func (h *Handle) ExpiresAt() time.Time { return h.expiresAt }

// Acquire tries to take the global lock at path, retrying with the
// rate limiter's backoff until wait elapses or ctx is cancelled. On
// success it writes a lease sidecar file (path + ".lease")
// recording holder and expiry, valid for the given lease duration, per
// spec.md section 5's "30 min lease."
func Acquire(ctx context.Context, path, holder string, wait, lease time.Duration) (*Handle, error) {
	boundedCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	fl := flock.New(path)
	limiter := ratelimit.NewRateLimiter(&ratelimit.Config{
		APIDelay:          200 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          10 * time.Second,
		MaxAttempts:       1 << 30, // bounded by boundedCtx, not attempt count
	})

	for {
		locked, err := fl.TryLockContext(boundedCtx, 200*time.Millisecond)
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
		}
		if locked {
			break
		}
		if werr := limiter.Wait(boundedCtx); werr != nil {
			return nil, fmt.Errorf("timed out waiting for lock %s held by another process: %w", path, werr)
		}
	}

	leasePath := path + ".lease"
	expiresAt := time.Now().UTC().Add(lease)
	content := fmt.Sprintf("holder=%s\nexpires_at=%s\n", holder, expiresAt.Format(time.RFC3339))
	if err := os.WriteFile(leasePath, []byte(content), 0o600); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("writing lease file %s: %w", leasePath, err)
	}

	return &Handle{flock: fl, leasePath: leasePath, expiresAt: expiresAt}, nil
}
