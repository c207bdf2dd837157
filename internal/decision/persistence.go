package decision

import (
	"time"

	"arbitrage/internal/dec"
	"arbitrage/internal/gridcfg"
)

// comparison selects how a sample is compared against the gating
// threshold ("ge" for opens, "le" for closes).
type comparison int

const (
	cmpGE comparison = iota
	cmpLE
)

func compareSpread(value, threshold dec.D, cmp comparison) bool {
	if cmp == cmpLE {
		return value.LessThanOrEqual(threshold)
	}
	return value.GreaterThanOrEqual(threshold)
}

// persistenceState is the per-key gating window (Persistence
// gating). Only one of the strict/relaxed branches is populated at a
// time, decided by the config's strict_persistence_check flag.
type persistenceState struct {
	// relaxed mode
	lastBucket  int64
	hasBucket   bool
	bucketCount int

	// strict mode
	windowStart time.Time
	hasWindow   bool
}

func (s *persistenceState) reset() {
	*s = persistenceState{}
}

// check runs the persistence gate for one sample. now is
// passed in explicitly so callers can drive this deterministically in
// tests.
func check(state *persistenceState, value, threshold dec.D, cfg *gridcfg.GridConfig, cmp comparison, now time.Time) bool {
	if cfg.SpreadPersistenceSeconds <= 1 {
		state.reset()
		return compareSpread(value, threshold, cmp)
	}

	if cfg.StrictPersistenceCheck {
		return checkStrict(state, value, threshold, cfg.SpreadPersistenceSeconds, cmp, now)
	}
	return checkRelaxed(state, value, threshold, cfg.SpreadPersistenceSeconds, cmp, now)
}

func checkRelaxed(state *persistenceState, value, threshold dec.D, requiredSeconds int, cmp comparison, now time.Time) bool {
	if !compareSpread(value, threshold, cmp) {
		state.reset()
		return false
	}

	bucket := now.Unix()
	switch {
	case !state.hasBucket:
		state.bucketCount = 1
	case bucket == state.lastBucket:
		// same second, no progress
	case bucket == state.lastBucket+1:
		state.bucketCount++
	case bucket == state.lastBucket+2:
		// one missing bucket tolerated: the run continues rather than
		// resetting, it just doesn't get credit for the gap second.
		state.bucketCount++
	default:
		// two or more consecutive missing buckets: reset to a fresh
		// single-bucket run.
		state.bucketCount = 1
	}
	state.lastBucket = bucket
	state.hasBucket = true

	return state.bucketCount >= requiredSeconds
}

func checkStrict(state *persistenceState, value, threshold dec.D, requiredSeconds int, cmp comparison, now time.Time) bool {
	if !compareSpread(value, threshold, cmp) {
		state.reset()
		return false
	}

	if !state.hasWindow {
		state.windowStart = now
		state.hasWindow = true
	}

	elapsed := now.Sub(state.windowStart)
	return elapsed >= time.Duration(requiredSeconds)*time.Second
}
