// Prometheus metrics for observability.
//
// Exposes the counters and gauges the dashboard serves at /metrics:
//   - btcud_signals_total{strategy,side}    – signals a strategy produced
//   - btcud_orders_total{strategy,side}     – orders actually dispatched
//   - btcud_fills_total{strategy,status}    – order acks by terminal status
//   - btcud_circuit_breaker_trips_total     – kill signals from the portfolio risk manager
//   - btcud_feed_staleness_seconds          – age of the last inbound event
//     (set only through SetFeedStaleness, which the engine does not call)
//   - btcud_markets_active                  – markets currently running
//
// Registered in init() and served by the HTTP handler the dashboard wires
// up at startup (Prometheus text exposition format).
package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	metricSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btcud_signals_total",
			Help: "Signals emitted by strategy and side.",
		},
		[]string{"strategy", "side"},
	)

	metricOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btcud_orders_total",
			Help: "Orders dispatched by strategy and side.",
		},
		[]string{"strategy", "side"},
	)

	metricFills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btcud_fills_total",
			Help: "Order acks by strategy and terminal status.",
		},
		[]string{"strategy", "status"},
	)

	metricCircuitBreakerTrips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "btcud_circuit_breaker_trips_total",
			Help: "Kill signals (any breached limit) raised by the portfolio risk manager.",
		},
	)

	metricFeedStaleness = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "btcud_feed_staleness_seconds",
			Help: "Age of the last inbound event per market, in seconds.",
		},
		[]string{"market"},
	)

	metricMarketsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "btcud_markets_active",
			Help: "Number of markets currently running.",
		},
	)

	metricGrossPnL = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "btcud_market_gross_pnl",
			Help: "Realized PnL of the most recently settled market, by slug.",
		},
		[]string{"slug"},
	)
)

func init() {
	prometheus.MustRegister(metricSignals, metricOrders, metricFills)
	prometheus.MustRegister(metricCircuitBreakerTrips)
	prometheus.MustRegister(metricFeedStaleness, metricMarketsActive, metricGrossPnL)
}

// ObserveSignal increments the signal counter for strategy/side.
func ObserveSignal(strategy, side string) { metricSignals.WithLabelValues(strategy, side).Inc() }

// ObserveOrder increments the order counter for strategy/side.
func ObserveOrder(strategy, side string) { metricOrders.WithLabelValues(strategy, side).Inc() }

// ObserveFill increments the fill counter for strategy/status.
func ObserveFill(strategy, status string) { metricFills.WithLabelValues(strategy, status).Inc() }

// IncCircuitBreakerTrip records one kill signal from the risk manager.
func IncCircuitBreakerTrip() { metricCircuitBreakerTrips.Inc() }

// SetFeedStaleness reports the current staleness of a market's feed.
func SetFeedStaleness(market string, seconds float64) {
	metricFeedStaleness.WithLabelValues(market).Set(seconds)
}

// SetMarketsActive reports how many markets are currently running.
func SetMarketsActive(n int) { metricMarketsActive.Set(float64(n)) }

// SetMarketGrossPnL records a settled market's realized PnL.
func SetMarketGrossPnL(slug string, pnl float64) { metricGrossPnL.WithLabelValues(slug).Set(pnl) }
