package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EscrowMetrics tracks wager operations, their failures and vault movements.
type EscrowMetrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	custody    *prometheus.CounterVec
}

// SweeperMetrics tracks the refund sweeper loop.
type SweeperMetrics struct {
	runs     prometheus.Counter
	refunded prometheus.Counter
	failed   *prometheus.CounterVec
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics

	sweeperOnce     sync.Once
	sweeperRegistry *SweeperMetrics
)

// Escrow returns the lazily registered escrow collectors.
func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "wager",
				Subsystem: "escrow",
				Name:      "operations_total",
				Help:      "Committed escrow operations by operation.",
			}, []string{"operation"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "wager",
				Subsystem: "escrow",
				Name:      "failures_total",
				Help:      "Rejected escrow operations by operation and error code.",
			}, []string{"operation", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "wager",
				Subsystem: "escrow",
				Name:      "operation_duration_seconds",
				Help:      "Latency of escrow operations including the atomic unit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			custody: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "wager",
				Subsystem: "escrow",
				Name:      "vault_flow_minor_units_total",
				Help:      "Minor units moved into and out of vaults.",
			}, []string{"direction"}),
		}
		prometheus.MustRegister(
			escrowRegistry.operations,
			escrowRegistry.failures,
			escrowRegistry.latency,
			escrowRegistry.custody,
		)
	})
	return escrowRegistry
}

// Observe records the outcome of one operation. code is empty on success.
func (m *EscrowMetrics) Observe(operation, code string, duration time.Duration) {
	if m == nil {
		return
	}
	if code == "" {
		m.operations.WithLabelValues(operation).Inc()
	} else {
		m.failures.WithLabelValues(operation, code).Inc()
	}
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// Deposited adds a stake that entered a vault.
func (m *EscrowMetrics) Deposited(amount uint64) {
	if m == nil {
		return
	}
	m.custody.WithLabelValues("in").Add(float64(amount))
}

// Released adds units that left a vault.
func (m *EscrowMetrics) Released(amount uint64) {
	if m == nil {
		return
	}
	m.custody.WithLabelValues("out").Add(float64(amount))
}

// Sweeper returns the lazily registered sweeper collectors.
func Sweeper() *SweeperMetrics {
	sweeperOnce.Do(func() {
		sweeperRegistry = &SweeperMetrics{
			runs: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "wager",
				Subsystem: "sweeper",
				Name:      "runs_total",
				Help:      "Completed refund sweep passes.",
			}),
			refunded: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "wager",
				Subsystem: "sweeper",
				Name:      "refunded_total",
				Help:      "Wagers refunded by the sweeper.",
			}),
			failed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "wager",
				Subsystem: "sweeper",
				Name:      "failed_total",
				Help:      "Sweeper refund attempts that failed, by error code.",
			}, []string{"code"}),
		}
		prometheus.MustRegister(sweeperRegistry.runs, sweeperRegistry.refunded, sweeperRegistry.failed)
	})
	return sweeperRegistry
}

// Run counts a finished pass.
func (m *SweeperMetrics) Run() {
	if m == nil {
		return
	}
	m.runs.Inc()
}

// Refunded counts a successful refund.
func (m *SweeperMetrics) Refunded() {
	if m == nil {
		return
	}
	m.refunded.Inc()
}

// Failed counts a failed refund attempt.
func (m *SweeperMetrics) Failed(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "internal"
	}
	m.failed.WithLabelValues(code).Inc()
}
