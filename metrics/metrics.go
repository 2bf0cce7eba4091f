package metrics

import (
	"net/http"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "accounts"

// Collector records coordinator outcomes as Prometheus metrics.
type Collector struct {
	operations    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	compensations *prometheus.CounterVec
	dangling      prometheus.Counter
}

var _ accounts.Metrics = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Coordinator operations by outcome.",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Coordinator operation latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensations_total",
			Help:      "Registration compensation attempts by step and result.",
		}, []string{"step", "result"}),
		dangling: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dangling_identities_total",
			Help:      "Identities left without a profile after a failed compensation.",
		}),
	}

	reg.MustRegister(
		c.operations,
		c.latency,
		c.compensations,
		c.dangling,
	)

	return c
}

// RecordOperation implements accounts.Metrics.
func (c *Collector) RecordOperation(operation string, kind accounts.ErrorKind, duration time.Duration) {
	c.operations.WithLabelValues(operation, outcome(kind)).Inc()
	c.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCompensation implements accounts.Metrics.
func (c *Collector) RecordCompensation(step string, succeeded bool) {
	result := "failed"
	if succeeded {
		result = "succeeded"
	}
	c.compensations.WithLabelValues(step, result).Inc()
}

// RecordDanglingIdentity implements accounts.Metrics.
func (c *Collector) RecordDanglingIdentity() {
	c.dangling.Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func outcome(kind accounts.ErrorKind) string {
	if kind == accounts.KindNone {
		return "ok"
	}
	return string(kind)
}
