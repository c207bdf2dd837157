package risk

import (
	"sync"

	"arbitrage/internal/venue"
)

// SymbolState is a symbol's coarse lifecycle state, advisory for
// dashboards and logs - the decision engine's own open/close gating
// does not consult it.
type SymbolState int

const (
	// SymbolIdle: no grid level has been reached and no position is
	// held.
	SymbolIdle SymbolState = iota
	// SymbolWaiting: the spread has reached a qualifying grid level
	// but no capital has been deployed yet (still inside the
	// persistence window, or blocked by a risk gate).
	SymbolWaiting
	// SymbolActive: at least one segment is open.
	SymbolActive
)

func (s SymbolState) String() string {
	switch s {
	case SymbolWaiting:
		return "waiting"
	case SymbolActive:
		return "active"
	default:
		return "idle"
	}
}

// SymbolStateManager tracks SymbolState per symbol, gated by the
// latest observed grid level and whether the symbol carries a
// position. Modeled as a table of named states driven by a single
// Observe-like transition call, narrowed to the three advisory states
// this system's Non-goals leave room for (no quoting/hedging states).
type SymbolStateManager struct {
	mu     sync.Mutex
	states map[venue.Symbol]SymbolState
}

// NewSymbolStateManager builds an empty manager; symbols default to
// SymbolIdle until first observed.
func NewSymbolStateManager() *SymbolStateManager {
	return &SymbolStateManager{states: make(map[venue.Symbol]SymbolState)}
}

// Observe updates and returns a symbol's state from the latest grid
// level and position flag ("idle/waiting states gated by
// grid level").
func (m *SymbolStateManager) Observe(symbol venue.Symbol, grid int, hasPosition bool) SymbolState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := SymbolIdle
	switch {
	case hasPosition:
		state = SymbolActive
	case grid > 0:
		state = SymbolWaiting
	}
	m.states[symbol] = state
	return state
}

// State returns the last-observed state for symbol (SymbolIdle if
// never observed).
func (m *SymbolStateManager) State(symbol venue.Symbol) SymbolState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[symbol]
}
