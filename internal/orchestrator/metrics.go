package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the control loop: tick-to-order
// latency, trade outcomes, realized PnL, open-position count, venue
// connection/balance gauges, observed spreads, detected opportunities
// and backoff pauses. The vectors are registered here, alongside
// tickOnce and reconnectVenue, so every metric is updated from the
// exact call sites that run in production rather than declared apart
// from the loop that would feed them.

var tickToOrderLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "arbitrage",
		Subsystem: "trading",
		Name:      "tick_to_order_latency_ms",
		Help:      "Latency from price tick to order submission in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
	},
	[]string{"symbol", "stage"},
)

var tradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "trading",
		Name:      "trades_total",
		Help:      "Total number of trades",
	},
	[]string{"symbol", "result"},
)

var pnlTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "trading",
		Name:      "pnl_total_usdc",
		Help:      "Total realized PnL in USDC",
	},
)

var activeArbitrages = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "trading",
		Name:      "active_arbitrages",
		Help:      "Current number of open arbitrage positions",
	},
)

var exchangeConnections = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "exchange",
		Name:      "connection_status",
		Help:      "Exchange connection status (1=connected, 0=disconnected)",
	},
	[]string{"exchange"},
)

var exchangeBalance = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "exchange",
		Name:      "balance_usdc",
		Help:      "Exchange balance in USDC",
	},
	[]string{"exchange"},
)

var spreadObserved = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "arbitrage",
		Subsystem: "trading",
		Name:      "spread_observed_percent",
		Help:      "Observed spread values in percent",
		Buckets:   []float64{-1, -0.5, 0, 0.1, 0.2, 0.3, 0.5, 1, 2, 5},
	},
	[]string{"symbol"},
)

var opportunitiesDetected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "trading",
		Name:      "opportunities_detected_total",
		Help:      "Number of arbitrage opportunities detected",
	},
	[]string{"symbol", "triggered"},
)

var backoffPauses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "risk",
		Name:      "backoff_pauses_total",
		Help:      "Number of times a venue was paused by the error backoff controller",
	},
	[]string{"venue", "reason"},
)

func recordOpportunity(symbol string, triggered bool) {
	triggeredStr := "no"
	if triggered {
		triggeredStr = "yes"
	}
	opportunitiesDetected.WithLabelValues(symbol, triggeredStr).Inc()
}

func recordSpread(symbol string, spreadPercent float64) {
	spreadObserved.WithLabelValues(symbol).Observe(spreadPercent)
}

func recordTrade(symbol, result string, pnl float64) {
	tradesTotal.WithLabelValues(symbol, result).Inc()
	if result == "success" && pnl != 0 {
		pnlTotal.Add(pnl)
	}
}

func recordTickToOrder(symbol, stage string, latencyMs float64) {
	tickToOrderLatency.WithLabelValues(symbol, stage).Observe(latencyMs)
}

func updateActiveArbitrages(count int) {
	activeArbitrages.Set(float64(count))
}

func updateExchangeStatus(exchangeName string, connected bool, balance float64) {
	status := 0.0
	if connected {
		status = 1.0
	}
	exchangeConnections.WithLabelValues(exchangeName).Set(status)
	exchangeBalance.WithLabelValues(exchangeName).Set(balance)
}

func recordBackoffPause(venueName, reason string) {
	backoffPauses.WithLabelValues(venueName, reason).Inc()
}
