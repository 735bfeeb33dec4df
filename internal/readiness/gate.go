// Package readiness tracks whether the upstream trading capability is
// initialized and reachable, and gates mutating operations on that state.
package readiness

import (
	"context"
	"sync"
	"time"

	"github.com/flowforge/ostiumgate/internal/pkg/logger"
	"github.com/flowforge/ostiumgate/internal/pkg/metrics"
)

type State int

const (
	NotReady State = iota
	Ready
	Degraded
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	default:
		return "not_ready"
	}
}

// Check is a single startup/connectivity probe. Name shows up in /ready
// diagnostics when the check fails.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Gate is shared-read, single-writer: only Probe/ReportFault mutate state,
// reads never block on a probe in flight.
//
// State machine: NotReady -> Ready on the first fully successful probe;
// Ready <-> Degraded on fault/recovery. A running instance never returns
// to NotReady, so health checks do not flap during partial outages.
type Gate struct {
	mu     sync.RWMutex
	state  State
	reason string
	checks []Check
}

func NewGate(checks ...Check) *Gate {
	g := &Gate{state: NotReady, reason: "startup probe has not completed"}
	g.checks = checks
	metrics.ReadinessState.Set(float64(NotReady))
	return g
}

// State returns the current state and, when not ready, the diagnostic
// reason (e.g. which configuration check failed).
func (g *Gate) State() (State, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state, g.reason
}

// RequireReady fails fast for mutating routes. Degraded blocks mutations;
// only a fully recovered upstream may accept trading writes.
func (g *Gate) RequireReady() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != Ready {
		return &NotReadyError{State: g.state, Reason: g.reason}
	}
	return nil
}

// Probe re-evaluates every check and applies the state transition.
func (g *Gate) Probe(ctx context.Context) State {
	var failed string
	for _, c := range g.checks {
		if err := c.Probe(ctx); err != nil {
			failed = c.Name + ": " + err.Error()
			break
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if failed == "" {
		if g.state != Ready {
			logger.Info("readiness probe succeeded", "previous", g.state.String())
		}
		g.setLocked(Ready, "")
		return g.state
	}

	switch g.state {
	case NotReady:
		// Not yet initialized; stay NotReady so startup failures are
		// distinguishable from runtime faults.
		g.setLocked(NotReady, failed)
	default:
		logger.Warn("readiness probe failed", "reason", failed)
		g.setLocked(Degraded, failed)
	}
	return g.state
}

// ReportFault demotes a running gate to Degraded. Called when an upstream
// call times out or the backend is unreachable; the next successful probe
// promotes back to Ready.
func (g *Gate) ReportFault(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Ready {
		return
	}
	logger.Warn("upstream fault reported, degrading", "reason", reason)
	g.setLocked(Degraded, reason)
}

// Run probes immediately and then on every tick until ctx is done.
func (g *Gate) Run(ctx context.Context, interval time.Duration) {
	g.Probe(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Probe(ctx)
		}
	}
}

func (g *Gate) setLocked(s State, reason string) {
	g.state = s
	g.reason = reason
	metrics.ReadinessState.Set(float64(s))
}

// NotReadyError carries the gate state for error translation.
type NotReadyError struct {
	State  State
	Reason string
}

func (e *NotReadyError) Error() string {
	if e.Reason == "" {
		return "service is " + e.State.String()
	}
	return "service is " + e.State.String() + ": " + e.Reason
}
