package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements lettergate.Metrics using Prometheus.
type Metrics struct {
	grantsTotal        *prometheus.CounterVec
	grantUsage         *prometheus.HistogramVec
	rejectionsTotal    *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	storageOpsDuration *prometheus.HistogramVec
	storageOpsErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		grantsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grants_total",
			Help:      "Total number of committed letter-check grants.",
		}, []string{}),

		grantUsage: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grant_usage",
			Help:      "Distribution of per-user usage counts at commit time.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20},
		}, []string{}),

		rejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Total number of rejected requests by reason.",
		}, []string{"reason"}),

		completionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Latency of completion gateway calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"outcome"}),

		storageOpsDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_duration_seconds",
			Help:      "Latency of storage operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		storageOpsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operation_errors_total",
			Help:      "Total number of storage operation errors.",
		}, []string{"operation"}),
	}
}

func (m *Metrics) RecordGrant(_ string, used, _ int) {
	m.grantsTotal.WithLabelValues().Inc()
	m.grantUsage.WithLabelValues().Observe(float64(used))
}

func (m *Metrics) RecordRejection(reason string) {
	m.rejectionsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordCompletion(duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.completionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) RecordStorageOperation(operation string, duration time.Duration, err error) {
	m.storageOpsDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.storageOpsErrors.WithLabelValues(operation).Inc()
	}
}

// DefaultMetrics returns a Metrics implementation using the default Prometheus registerer.
func DefaultMetrics(namespace string) *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}
