package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"agromix/pkg/domain"
)

// PrometheusMetricsRecorder exports facade metrics as Prometheus collectors.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	fallbacks  *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers the collectors on reg. A nil
// registerer uses prometheus.DefaultRegisterer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusMetricsRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agromix",
			Subsystem: "persistence",
			Name:      "operations_total",
			Help:      "Persistence facade operations by outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agromix",
			Subsystem: "persistence",
			Name:      "operation_duration_seconds",
			Help:      "Persistence facade operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agromix",
			Subsystem: "persistence",
			Name:      "local_fallbacks_total",
			Help:      "Operations served by the local store after a remote failure.",
		}, []string{"entity", "operation", "kind"}),
	}
	for _, c := range []prometheus.Collector{r.operations, r.durations, r.fallbacks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFallback implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) RecordFallback(_ context.Context, entity domain.EntityKind, operation string, kind ErrorKind) {
	r.fallbacks.WithLabelValues(string(entity), operation, string(kind)).Inc()
}
