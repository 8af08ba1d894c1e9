package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type poolMetrics struct {
	operations  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	rewardSkims prometheus.Counter
	paused      prometheus.Gauge
}

var (
	poolMetricsOnce sync.Once
	poolRegistry    *poolMetrics
)

// PoolMetrics returns the lazily-initialised metrics registry used to record
// ledger operation activity. Amounts are deliberately absent: events carry
// them, metrics only count outcomes.
func PoolMetrics() *poolMetrics {
	poolMetricsOnce.Do(func() {
		poolRegistry = &poolMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ispo",
				Subsystem: "pool",
				Name:      "operations_total",
				Help:      "Total ledger operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "ispo",
				Subsystem: "pool",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for ledger operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			rewardSkims: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "ispo",
				Subsystem: "pool",
				Name:      "reward_skims_total",
				Help:      "Number of reward assignments that moved yield into the treasury.",
			}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "ispo",
				Subsystem: "pool",
				Name:      "paused",
				Help:      "1 while the pool is suspended, 0 otherwise.",
			}),
		}
		prometheus.MustRegister(
			poolRegistry.operations,
			poolRegistry.latency,
			poolRegistry.rewardSkims,
			poolRegistry.paused,
		)
	})
	return poolRegistry
}

// ObserveOperation records one completed operation with its outcome and
// duration in seconds.
func (m *poolMetrics) ObserveOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(seconds)
}

// RecordRewardSkim counts a reward assignment that minted treasury shares.
func (m *poolMetrics) RecordRewardSkim() {
	if m == nil {
		return
	}
	m.rewardSkims.Inc()
}

// SetPaused mirrors the operating mode into the gauge.
func (m *poolMetrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
		return
	}
	m.paused.Set(0)
}
