// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Cycle metrics
	Cycles              *prometheus.CounterVec
	CycleDuration       *prometheus.HistogramVec
	Candidates          *prometheus.CounterVec
	DedupHits           *prometheus.CounterVec
	WalletsScored       *prometheus.CounterVec
	LastSuccessfulCycle *prometheus.GaugeVec

	// Upstream metrics
	UpstreamLatency *prometheus.HistogramVec
	UpstreamErrors  *prometheus.CounterVec

	// Record store metrics
	StoreOps     *prometheus.CounterVec
	StoreErrors  *prometheus.CounterVec
	SweepRemoved *prometheus.CounterVec
	StorePending prometheus.Gauge

	// Delivery metrics
	Deliveries *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered with the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates a Metrics instance registered with reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "smart_money_tracker"
	}
	f := promauto.With(reg)

	return &Metrics{
		// Cycle metrics
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Total number of pipeline cycles by chain and status",
		}, []string{"chain", "status"}),
		CycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Pipeline cycle duration in seconds",
			Buckets:   []float64{1, 5, 10, 20, 30, 45, 60, 120, 300},
		}, []string{"chain"}),
		Candidates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "candidates_total",
			Help:      "Total number of candidates by chain and outcome",
		}, []string{"chain", "outcome"}),
		DedupHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "hits_total",
			Help:      "Total number of duplicate candidates by tier",
		}, []string{"tier"}),
		WalletsScored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "wallets_scored_total",
			Help:      "Total number of wallet scoring attempts by result",
		}, []string{"result"}),
		LastSuccessfulCycle: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last successful cycle per chain",
		}, []string{"chain"}),

		// Upstream metrics
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_latency_seconds",
			Help:      "Market-data and security provider call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		UpstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_errors_total",
			Help:      "Total number of failed provider calls",
		}, []string{"op"}),

		// Record store metrics
		StoreOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of substrate operations by partition and op",
		}, []string{"partition", "op"}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Total number of failed substrate operations by partition and op",
		}, []string{"partition", "op"}),
		SweepRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "sweep_removed_total",
			Help:      "Total number of records removed by retention sweeps",
		}, []string{"partition"}),
		StorePending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "pending_records",
			Help:      "Records staged but not yet flushed",
		}),

		// Delivery metrics
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "messages_total",
			Help:      "Total number of deliveries by sink and kind",
		}, []string{"sink", "kind"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCycle records a finished cycle.
func (m *Metrics) RecordCycle(chain, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(chain, status).Inc()
	m.CycleDuration.WithLabelValues(chain).Observe(d.Seconds())
	if status == "ok" {
		m.LastSuccessfulCycle.WithLabelValues(chain).SetToCurrentTime()
	}
}

// RecordCandidate records a candidate's outcome.
func (m *Metrics) RecordCandidate(chain, outcome string) {
	if m == nil {
		return
	}
	m.Candidates.WithLabelValues(chain, outcome).Inc()
}

// RecordDedupHit records a duplicate caught by a tier.
func (m *Metrics) RecordDedupHit(tier string) {
	if m == nil {
		return
	}
	m.DedupHits.WithLabelValues(tier).Inc()
}

// RecordWalletScore records one wallet scoring attempt.
func (m *Metrics) RecordWalletScore(scored bool) {
	if m == nil {
		return
	}
	result := "unscored"
	if scored {
		result = "scored"
	}
	m.WalletsScored.WithLabelValues(result).Inc()
}

// RecordDelivery records one delivery receipt.
func (m *Metrics) RecordDelivery(sink string, image bool, err error) {
	if m == nil {
		return
	}
	kind := "text"
	switch {
	case err != nil:
		kind = "failed"
	case image:
		kind = "image"
	}
	m.Deliveries.WithLabelValues(sink, kind).Inc()
}

// RecordSweep records retention removals per partition.
func (m *Metrics) RecordSweep(removed map[string]int) {
	if m == nil {
		return
	}
	for partition, n := range removed {
		m.SweepRemoved.WithLabelValues(partition).Add(float64(n))
	}
}

// SetPending sets the staged record gauge.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.StorePending.Set(float64(n))
}

// UpstreamObserver returns a callback for provider client instrumentation.
func (m *Metrics) UpstreamObserver() func(op string, elapsed time.Duration, err error) {
	return func(op string, elapsed time.Duration, err error) {
		if m == nil {
			return
		}
		m.UpstreamLatency.WithLabelValues(op).Observe(elapsed.Seconds())
		if err != nil {
			m.UpstreamErrors.WithLabelValues(op).Inc()
		}
	}
}

// StoreObserver returns a callback for record store instrumentation.
func (m *Metrics) StoreObserver() func(partition, op string, err error) {
	return func(partition, op string, err error) {
		if m == nil {
			return
		}
		m.StoreOps.WithLabelValues(partition, op).Inc()
		if err != nil {
			m.StoreErrors.WithLabelValues(partition, op).Inc()
		}
	}
}
