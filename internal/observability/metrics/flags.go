package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// FlagServiceMetrics contains Prometheus metrics for calls to the flags service.
// It implements Recorder.
type FlagServiceMetrics struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
}

// NewFlagServiceMetrics creates and registers new flags service metrics
func NewFlagServiceMetrics(registry *prometheus.Registry) (*FlagServiceMetrics, error) {
	m := &FlagServiceMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *FlagServiceMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flagmigrate_flags_operations_total",
			Help: "Total number of flags service calls",
		},
		[]string{"operation", "status"}, // operation: create, update, append_note
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flagmigrate_flags_operation_duration_seconds",
			Help:    "Time taken for flags service calls",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~16s
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flagmigrate_flags_operation_errors_total",
			Help: "Total number of flags service errors",
		},
		[]string{"operation", "error_type"},
	)
}

// Describe implements the Collector interface
func (m *FlagServiceMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.errorsTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *FlagServiceMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.errorsTotal.Collect(ch)
}

// RecordOperation records a flags service call with its status
func (m *FlagServiceMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration records the duration of a flags service call
func (m *FlagServiceMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError records a flags service error
func (m *FlagServiceMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}
