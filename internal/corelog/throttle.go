// Package corelog wraps pkg/utils' zap-based Logger with a throttled
// logging discipline: at most one warning per (action, symbol, code)
// window, default 30s. Grounded on the WS reconnect backoff
// bookkeeping in internal/exchange/ws_reconnect.go, which keeps a
// last-fired timestamp per key to avoid reconnect-storm log spam; the
// same shape is generalized here to any (key, subkey) pair.
package corelog

import (
	"sync"
	"time"

	"arbitrage/pkg/utils"

	"go.uber.org/zap"
)

// DefaultInterval is log_signal_reject's default throttle window.
const DefaultInterval = 30 * time.Second

// throttleState is the shared, mutex-guarded last-fired map. With()
// derives a new Throttler over the same state so every derived logger
// still shares one throttle window per key.
type throttleState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// Throttler wraps a *utils.Logger and adds throttled warning emission
// keyed by an arbitrary (key, subkey) pair.
type Throttler struct {
	log   *utils.Logger
	state *throttleState
}

// New wraps an existing logger. A nil logger falls back to the global
// logger so callers can pass utils.L() implicitly.
func New(log *utils.Logger) *Throttler {
	if log == nil {
		log = utils.L()
	}
	return &Throttler{log: log, state: &throttleState{last: make(map[string]time.Time)}}
}

// Throttled runs fn at most once per interval for the given (key,
// subkey) pair. Callers pass the log call itself as fn so the message
// is only formatted when it will actually be emitted.
func (t *Throttler) Throttled(key, subkey string, interval time.Duration, fn func()) {
	k := key + "\x00" + subkey
	now := time.Now()

	t.state.mu.Lock()
	last, seen := t.state.last[k]
	if seen && now.Sub(last) < interval {
		t.state.mu.Unlock()
		return
	}
	t.state.last[k] = now
	t.state.mu.Unlock()

	fn()
}

// Reset clears a key's throttle state, e.g. once a reject condition
// clears so the next occurrence logs immediately rather than waiting
// out a stale window.
func (t *Throttler) Reset(key, subkey string) {
	t.state.mu.Lock()
	delete(t.state.last, key+"\x00"+subkey)
	t.state.mu.Unlock()
}

func (t *Throttler) Debug(msg string, fields ...zap.Field) { t.log.Debug(msg, fields...) }
func (t *Throttler) Info(msg string, fields ...zap.Field)  { t.log.Info(msg, fields...) }
func (t *Throttler) Warn(msg string, fields ...zap.Field)  { t.log.Warn(msg, fields...) }
func (t *Throttler) Error(msg string, fields ...zap.Field) { t.log.Error(msg, fields...) }

func (t *Throttler) Debugf(format string, args ...interface{}) { t.log.Sugar().Debugf(format, args...) }
func (t *Throttler) Infof(format string, args ...interface{})  { t.log.Sugar().Infof(format, args...) }
func (t *Throttler) Warnf(format string, args ...interface{})  { t.log.Sugar().Warnf(format, args...) }
func (t *Throttler) Errorf(format string, args ...interface{}) { t.log.Sugar().Errorf(format, args...) }

// With returns a Throttler sharing the same throttle state but logging
// through a derived logger (e.g. log.WithExchange("bybit")).
func (t *Throttler) With(fields ...zap.Field) *Throttler {
	return &Throttler{log: t.log.With(fields...), state: t.state}
}

// Logger exposes the underlying logger for callers that need the full
// *utils.Logger surface (e.g. passing into a component constructor).
func (t *Throttler) Logger() *utils.Logger {
	return t.log
}
