// Package risk holds the system-wide and per-venue safety controllers
//: the error-backoff pause gate, the global balance/trade
// caps, the manual reduce-only/blocked override, and the symbol
// lifecycle tracker. Builds on a margin-checks/emergency-close/
// notification-channel shape and pkg/retry's exponential-backoff-with-
// jitter, generalized from "stop loss and liquidation handling for one
// exchange client" to the black-box-executor risk surface this system
// exposes to internal/decision and internal/orchestrator.
package risk

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"arbitrage/internal/venue"
	"arbitrage/pkg/retry"
)

// ErrorBackoffController tracks consecutive adapter failures per venue
// and exposes a pause-until gate that internal/decision consults
// through the BackoffChecker interface before opening or closing. The
// escalation formula mirrors pkg/retry's Config.calculateDelay
// (InitialDelay*Multiplier^failures, capped at MaxDelay,
// +/-JitterFactor jitter) - that method is unexported, so it is
// reproduced here against the same Config fields rather than forked
// into a new schedule.
type ErrorBackoffController struct {
	mu    sync.Mutex
	cfg   retry.Config
	state map[venue.ID]*backoffEntry
	now   func() time.Time
}

type backoffEntry struct {
	failures   int
	pauseUntil time.Time
	reasonCode string
}

// NewErrorBackoffController builds a controller using cfg as the
// escalation schedule (retry.DefaultConfig is a reasonable default for
// venue connectivity faults).
func NewErrorBackoffController(cfg retry.Config) *ErrorBackoffController {
	return &ErrorBackoffController{
		cfg:   cfg,
		state: make(map[venue.ID]*backoffEntry),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source for deterministic tests.
func (c *ErrorBackoffController) SetClock(now func() time.Time) { c.now = now }

// RecordFailure bumps the venue's consecutive-failure count and
// re-arms pause_until at the escalated delay, tagging the pause with
// reasonCode (reason codes: "transport", "auth",
// "rate_limited", "rejected", "stale").
func (c *ErrorBackoffController) RecordFailure(v venue.ID, reasonCode string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.state[v]
	if !ok {
		e = &backoffEntry{}
		c.state[v] = e
	}
	delay := backoffDelay(c.cfg, e.failures)
	e.failures++
	e.reasonCode = reasonCode
	e.pauseUntil = c.now().Add(delay)
	return e.pauseUntil
}

// RecordSuccess clears a venue's failure streak and lifts any pause -
// the restart_hook analog: a clean round-trip is evidence
// the venue has recovered.
func (c *ErrorBackoffController) RecordSuccess(v venue.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.state, v)
}

// IsPaused satisfies internal/decision.BackoffChecker.
func (c *ErrorBackoffController) IsPaused(v venue.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.state[v]
	if !ok {
		return false
	}
	return c.now().Before(e.pauseUntil)
}

// PauseInfo reports the current pause window and reason for a venue,
// for orchestrator status summaries.
func (c *ErrorBackoffController) PauseInfo(v venue.ID) (until time.Time, reasonCode string, paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.state[v]
	if !ok {
		return time.Time{}, "", false
	}
	return e.pauseUntil, e.reasonCode, c.now().Before(e.pauseUntil)
}

// Failures reports a venue's current consecutive-failure count.
func (c *ErrorBackoffController) Failures(v venue.ID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.state[v]
	if !ok {
		return 0
	}
	return e.failures
}

func backoffDelay(cfg retry.Config, failures int) time.Duration {
	initial := cfg.InitialDelay
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	mult := cfg.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	jitter := cfg.JitterFactor
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}

	delay := float64(initial) * math.Pow(mult, float64(failures))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	if jitter > 0 {
		delay += delay * jitter * (rand.Float64()*2 - 1)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
