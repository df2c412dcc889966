package hooks

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/Skryldev/filter-engine/errors"
)

// PrometheusMetrics is a core.MetricsCollector backed by client_golang.
// Metrics are registered on the Registerer passed to NewPrometheusMetrics so
// several instances can coexist (one per registry).
type PrometheusMetrics struct {
	stepDuration *prometheus.HistogramVec
	stepErrors   *prometheus.CounterVec
	throughput   prometheus.Counter
	events       *prometheus.CounterVec
}

// NewPrometheusMetrics registers the filter-engine metrics on reg under namespace.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = "filterengine"
	}
	f := promauto.With(reg)
	return &PrometheusMetrics{
		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of pipeline steps and background tasks in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		stepErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_errors_total",
			Help:      "Failed pipeline steps and background tasks",
		}, []string{"step", "category"}),
		throughput: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_bytes_total",
			Help:      "Total bytes of encoded output",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Discrete events such as dropped usage tasks and provider calls",
		}, []string{"event"}),
	}
}

func (p *PrometheusMetrics) RecordProcessingTime(stepName string, d time.Duration) {
	p.stepDuration.WithLabelValues(stepName).Observe(d.Seconds())
}

func (p *PrometheusMetrics) RecordThroughput(bytes int64) {
	if bytes > 0 {
		p.throughput.Add(float64(bytes))
	}
}

func (p *PrometheusMetrics) RecordError(stepName string, category string) {
	p.stepErrors.WithLabelValues(stepName, category).Inc()
}

func (p *PrometheusMetrics) RecordEvent(name string) {
	p.events.WithLabelValues(name).Inc()
}

// errorCategory extracts the category label of err.
func errorCategory(err error) string {
	var pe *apperrors.ProcessingError
	if errors.As(err, &pe) {
		return string(pe.Category)
	}
	return "unknown"
}
