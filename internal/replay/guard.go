// Package replay rejects stale and previously-seen request signatures.
// The store is the only mutable shared state in the gateway core, so
// admit-and-record must be a single atomic step: two concurrent requests
// carrying the same signature must never both be admitted.
package replay

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrStale marks a timestamp outside the freshness window.
	ErrStale = errors.New("request timestamp outside freshness window")
	// ErrReplayed marks a signature already admitted within the window.
	ErrReplayed = errors.New("request signature already seen")
)

// Store admits a (signature, timestamp) pair at most once per window.
type Store interface {
	Admit(ctx context.Context, signature string, timestamp, now time.Time) error
}

type record struct {
	timestamp time.Time
	seenAt    time.Time
}

// Guard is the in-memory Store. Eviction is lazy: every Admit purges
// entries whose admission time fell out of the window, so memory stays
// bounded by traffic rate x window length.
type Guard struct {
	mu        sync.Mutex
	window    time.Duration
	futureTol time.Duration
	seen      map[string]record
	lastSweep time.Time
}

// NewGuard builds a guard with the given freshness window and a smaller
// forward tolerance for future-dated timestamps.
func NewGuard(window, futureTol time.Duration) *Guard {
	if futureTol <= 0 || futureTol > window {
		futureTol = window
	}
	return &Guard{
		window:    window,
		futureTol: futureTol,
		seen:      make(map[string]record),
	}
}

func (g *Guard) Admit(_ context.Context, signature string, timestamp, now time.Time) error {
	if err := CheckFreshness(timestamp, now, g.window, g.futureTol); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.sweepLocked(now)

	if rec, ok := g.seen[signature]; ok && now.Sub(rec.seenAt) <= g.window {
		return ErrReplayed
	}
	g.seen[signature] = record{timestamp: timestamp, seenAt: now}
	return nil
}

// Len reports the current record count. Test hook.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

func (g *Guard) sweepLocked(now time.Time) {
	// A full map scan per request would be wasteful under load; sweep at
	// most once per window quarter.
	if now.Sub(g.lastSweep) < g.window/4 {
		return
	}
	g.lastSweep = now
	for sig, rec := range g.seen {
		if now.Sub(rec.seenAt) > g.window {
			delete(g.seen, sig)
		}
	}
}

// CheckFreshness applies the staleness rule shared by every Store
// implementation: requests older than the window are stale, and requests
// dated in the future beyond the forward tolerance are treated the same
// way to resist clock manipulation.
func CheckFreshness(timestamp, now time.Time, window, futureTol time.Duration) error {
	if now.Sub(timestamp) > window {
		return ErrStale
	}
	if timestamp.Sub(now) > futureTol {
		return ErrStale
	}
	return nil
}
