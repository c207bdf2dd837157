// Package processor runs the two cooperative loops (orderbook, ticker)
// that drain the receiver's queues and maintain the latest-snapshot
// maps the spread pipeline reads. Generalized from a
// sharded best-price-per-venue map into "latest full snapshot per
// (venue, symbol)" plus explicit freshness gating.
package processor

import (
	"sync"
	"time"

	"arbitrage/internal/corelog"
	"arbitrage/internal/receiver"
	"arbitrage/internal/venue"
)

// DefaultFreshness is data_freshness_seconds' default.
const DefaultFreshness = 3 * time.Second

// iterationBudget is the per-pass time budget (~5ms) runLoop measures
// each drain pass against. A pass that overruns it is neither cut short
// nor logged.
const iterationBudget = 5 * time.Millisecond

type key struct {
	venue  venue.ID
	symbol venue.Symbol
}

// throughputBuckets is the 60-minute sliding window granularity: one
// bucket per minute, 60 buckets total.
const throughputBuckets = 60

type throughput struct {
	mu      sync.Mutex
	buckets [throughputBuckets]int64
	minute  int64
}

func (t *throughput) tick(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := now.Unix() / 60
	if m != t.minute {
		// Clear buckets between the last tick and now (bounded by the
		// window length so a long gap doesn't loop forever).
		gap := m - t.minute
		if gap > throughputBuckets {
			gap = throughputBuckets
		}
		for i := int64(0); i < gap; i++ {
			t.buckets[(t.minute+1+i)%throughputBuckets] = 0
		}
		t.minute = m
	}
	t.buckets[m%throughputBuckets]++
}

func (t *throughput) total() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var sum int64
	for _, b := range t.buckets {
		sum += b
	}
	return sum
}

// Processor maintains latest snapshots per (venue, symbol) and exposes
// the freshness-gated read contract (GetOrderBook/GetTicker) the spread
// pipeline depends on.
type Processor struct {
	recv *receiver.Receiver
	log  *corelog.Throttler

	mu       sync.RWMutex
	books    map[key]*venue.OrderBookSnapshot
	tickers  map[key]*venue.TickerSnapshot
	bookFlow map[key]*throughput
	tickFlow map[key]*throughput
}

func New(recv *receiver.Receiver, log *corelog.Throttler) *Processor {
	return &Processor{
		recv:     recv,
		log:      log,
		books:    make(map[key]*venue.OrderBookSnapshot),
		tickers:  make(map[key]*venue.TickerSnapshot),
		bookFlow: make(map[key]*throughput),
		tickFlow: make(map[key]*throughput),
	}
}

// RunOrderBookLoop drains every venue's orderbook queue once per tick.
func (p *Processor) RunOrderBookLoop(stop <-chan struct{}, tick time.Duration) {
	p.runLoop(stop, tick, p.drainOrderBooksOnce)
}

// RunTickerLoop is the ticker-side counterpart of RunOrderBookLoop.
func (p *Processor) RunTickerLoop(stop <-chan struct{}, tick time.Duration) {
	p.runLoop(stop, tick, p.drainTickersOnce)
}

func (p *Processor) runLoop(stop <-chan struct{}, tick time.Duration, once func(time.Time)) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			deadline := now.Add(iterationBudget)
			once(now)
			if time.Now().After(deadline) {
				// Iteration ran long; the next tick still fires on
				// schedule and the overrun is not acted on.
				continue
			}
		}
	}
}

func (p *Processor) drainOrderBooksOnce(now time.Time) {
	for _, v := range p.recv.Venues() {
		for _, ev := range p.recv.DrainOrderBooks(v) {
			if ev.Book == nil {
				continue
			}
			ev.Book.ProcessedTimestamp = now
			k := key{venue: ev.Venue, symbol: ev.Book.Symbol}
			p.mu.Lock()
			p.books[k] = ev.Book
			if p.bookFlow[k] == nil {
				p.bookFlow[k] = &throughput{}
			}
			p.bookFlow[k].tick(now)
			p.mu.Unlock()
		}
	}
}

func (p *Processor) drainTickersOnce(now time.Time) {
	for _, v := range p.recv.Venues() {
		for _, ev := range p.recv.DrainTickers(v) {
			if ev.Ticker == nil {
				continue
			}
			k := key{venue: ev.Venue, symbol: ev.Ticker.Symbol}
			p.mu.Lock()
			p.tickers[k] = ev.Ticker
			if p.tickFlow[k] == nil {
				p.tickFlow[k] = &throughput{}
			}
			p.tickFlow[k].tick(now)
			p.mu.Unlock()
		}
	}
}

// GetOrderBook returns the latest snapshot for (venue, symbol) only if
// both its exchange and received timestamps pass the freshness check
// (invariant); otherwise it returns nil and throttles a
// "stale" log keyed by (venue, symbol, reason).
func (p *Processor) GetOrderBook(v venue.ID, symbol venue.Symbol, maxAge time.Duration) *venue.OrderBookSnapshot {
	k := key{venue: v, symbol: symbol}
	p.mu.RLock()
	ob := p.books[k]
	p.mu.RUnlock()
	if ob == nil {
		return nil
	}

	now := time.Now().UTC()
	if now.Sub(ob.ReceivedTimestamp) > maxAge {
		p.log.Throttled("stale_book_received", string(v)+"|"+string(symbol)+"|received", 30*time.Second, func() {
			p.log.Warnf("stale orderbook (received) venue=%s symbol=%s age=%s", v, symbol, now.Sub(ob.ReceivedTimestamp))
		})
		return nil
	}
	if now.Sub(ob.ExchangeTimestamp) > maxAge {
		p.log.Throttled("stale_book_exchange", string(v)+"|"+string(symbol)+"|exchange", 30*time.Second, func() {
			p.log.Warnf("stale orderbook (exchange) venue=%s symbol=%s age=%s", v, symbol, now.Sub(ob.ExchangeTimestamp))
		})
		return nil
	}
	return ob
}

// GetTicker is the ticker-side counterpart of GetOrderBook. It checks
// only the received timestamp against maxAge and returns nil without
// logging when that is stale.
func (p *Processor) GetTicker(v venue.ID, symbol venue.Symbol, maxAge time.Duration) *venue.TickerSnapshot {
	k := key{venue: v, symbol: symbol}
	p.mu.RLock()
	t := p.tickers[k]
	p.mu.RUnlock()
	if t == nil {
		return nil
	}
	if time.Now().UTC().Sub(t.ReceivedTimestamp) > maxAge {
		return nil
	}
	return t
}

// GetLastOrderBookReceivedTimestamp exposes the raw last-received time
// for diagnostics, bypassing the freshness gate.
func (p *Processor) GetLastOrderBookReceivedTimestamp(v venue.ID, symbol venue.Symbol) (time.Time, bool) {
	k := key{venue: v, symbol: symbol}
	p.mu.RLock()
	defer p.mu.RUnlock()
	ob := p.books[k]
	if ob == nil {
		return time.Time{}, false
	}
	return ob.ReceivedTimestamp, true
}

// ThroughputLastHour returns how many orderbook updates a (venue,
// symbol) pair received across the trailing 60-minute window.
func (p *Processor) ThroughputLastHour(v venue.ID, symbol venue.Symbol) int64 {
	k := key{venue: v, symbol: symbol}
	p.mu.RLock()
	tp := p.bookFlow[k]
	p.mu.RUnlock()
	if tp == nil {
		return 0
	}
	return tp.total()
}
