package observability

import (
	"math"
	"math/big"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records ledger operation counts, latencies and wei volumes.
type Metrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	volume     *prometheus.CounterVec
	events     *prometheus.CounterVec
}

// NewMetrics creates the ledger metrics and registers them with reg.
// Passing a fresh prometheus.NewRegistry keeps tests independent of the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "betledger",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total engine operations segmented by operation and outcome code.",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "betledger",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Latency distribution for engine operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "betledger",
			Subsystem: "engine",
			Name:      "wei_total",
			Help:      "Wei moved by successful operations segmented by flow.",
		}, []string{"flow"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "betledger",
			Subsystem: "events",
			Name:      "forwarded_total",
			Help:      "Events forwarded to the message broker segmented by type and outcome.",
		}, []string{"event_type", "outcome"}),
	}
	reg.MustRegister(m.operations, m.latency, m.volume, m.events)
	return m
}

// ObserveOperation records the outcome code and duration of one engine operation.
func (m *Metrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// AddVolume adds a wei amount to the given flow ("bet", "fund", "payout", "sale", "withdraw").
func (m *Metrics) AddVolume(flow string, amount *uint256.Int) {
	if m == nil || amount == nil || amount.IsZero() {
		return
	}
	m.volume.WithLabelValues(flow).Add(bigToFloat(amount.ToBig()))
}

// RecordEventForward counts an event handed to the broker.
func (m *Metrics) RecordEventForward(eventType string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
