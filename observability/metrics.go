package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records activity across the ledger, lock and settlement
// engines as exposed through the gateway.
type EngineMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	locksActive     prometheus.Gauge
	batchesSettled  prometheus.Counter
	batchesRejected *prometheus.CounterVec
	actionsApplied  *prometheus.CounterVec
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics
)

// Metrics returns the lazily-initialised engine metrics registry.
func Metrics() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hublend",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total gateway requests segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hublend",
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Total gateway errors segmented by operation and status code.",
			}, []string{"operation", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "hublend",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for gateway handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			locksActive: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "hublend",
				Subsystem: "lock",
				Name:      "active",
				Help:      "Number of currently active reservation locks.",
			}),
			batchesSettled: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "hublend",
				Subsystem: "settlement",
				Name:      "batches_settled_total",
				Help:      "Count of settlement batches applied successfully.",
			}),
			batchesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hublend",
				Subsystem: "settlement",
				Name:      "batches_rejected_total",
				Help:      "Count of settlement batches rejected, segmented by reason.",
			}, []string{"reason"}),
			actionsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hublend",
				Subsystem: "settlement",
				Name:      "actions_applied_total",
				Help:      "Count of settled batch actions segmented by kind.",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(
			engineRegistry.requests,
			engineRegistry.errors,
			engineRegistry.latency,
			engineRegistry.locksActive,
			engineRegistry.batchesSettled,
			engineRegistry.batchesRejected,
			engineRegistry.actionsApplied,
		)
	})
	return engineRegistry
}

// Observe records the outcome of one gateway operation.
func (m *EngineMetrics) Observe(operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// LockOpened and LockClosed track the active reservation gauge.
func (m *EngineMetrics) LockOpened() {
	if m != nil {
		m.locksActive.Inc()
	}
}

func (m *EngineMetrics) LockClosed() {
	if m != nil {
		m.locksActive.Dec()
	}
}

// BatchSettled records one applied batch and its per-kind action counts.
func (m *EngineMetrics) BatchSettled(supplies, repays, borrows, withdraws int) {
	if m == nil {
		return
	}
	m.batchesSettled.Inc()
	m.actionsApplied.WithLabelValues("supply").Add(float64(supplies))
	m.actionsApplied.WithLabelValues("repay").Add(float64(repays))
	m.actionsApplied.WithLabelValues("borrow").Add(float64(borrows))
	m.actionsApplied.WithLabelValues("withdraw").Add(float64(withdraws))
}

// BatchRejected records one rejected batch with a coarse reason label.
func (m *EngineMetrics) BatchRejected(reason string) {
	if m != nil {
		m.batchesRejected.WithLabelValues(reason).Inc()
	}
}
