package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Risk gate metrics
	validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskcore_validations_total",
			Help: "Total number of trade validations",
		},
		[]string{"symbol", "result"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskcore_rejections_total",
			Help: "Trade rejections by failing gate",
		},
		[]string{"gate"},
	)

	killSwitchLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskcore_kill_switch_level",
			Help: "Current kill switch level (0=inactive, 3=emergency)",
		},
	)

	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskcore_open_positions",
			Help: "Number of currently open positions",
		},
	)

	// Market data metrics
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskcore_ticks_total",
			Help: "Market ticks received from the streaming venue",
		},
		[]string{"symbol", "kind"},
	)

	ticksDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "riskcore_ticks_dropped_total",
			Help: "Ticks dropped because the consumer queue was full",
		},
	)

	feedReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "riskcore_feed_reconnects_total",
			Help: "Reconnection attempts made by the market data feed",
		},
	)

	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskcore_current_price",
			Help: "Last observed mid price per symbol",
		},
		[]string{"symbol"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskcore_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(validationsTotal)
	prometheus.MustRegister(rejectionsTotal)
	prometheus.MustRegister(killSwitchLevel)
	prometheus.MustRegister(openPositions)
	prometheus.MustRegister(ticksTotal)
	prometheus.MustRegister(ticksDroppedTotal)
	prometheus.MustRegister(feedReconnectsTotal)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(errorsTotal)
}

// Handler returns the Prometheus metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordValidation records the outcome of one trade validation.
func RecordValidation(symbol, result string) {
	validationsTotal.WithLabelValues(symbol, result).Inc()
}

// RecordRejection records which gate rejected a trade.
func RecordRejection(gate string) {
	rejectionsTotal.WithLabelValues(gate).Inc()
}

// SetKillSwitchLevel updates the kill switch level gauge.
func SetKillSwitchLevel(level int) {
	killSwitchLevel.Set(float64(level))
}

// SetOpenPositions updates the open position count gauge.
func SetOpenPositions(n int) {
	openPositions.Set(float64(n))
}

// RecordTick records one received market tick.
func RecordTick(symbol, kind string) {
	ticksTotal.WithLabelValues(symbol, kind).Inc()
}

// RecordTickDropped records a tick dropped under backpressure.
func RecordTickDropped() {
	ticksDroppedTotal.Inc()
}

// RecordReconnect records a feed reconnection attempt.
func RecordReconnect() {
	feedReconnectsTotal.Inc()
}

// UpdatePrice updates the current price metric.
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// RecordError records an error metric.
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
