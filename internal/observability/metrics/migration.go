package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/flagmigrate/internal/migration"
)

// MigrationMetrics contains Prometheus metrics for migration runs.
// It satisfies migration.Metrics and migration.Progress.
type MigrationMetrics struct {
	registry *prometheus.Registry

	itemsTotal        *prometheus.CounterVec
	itemsAttempted    prometheus.Counter
	itemsScanned      prometheus.Counter
	pagesTotal        prometheus.Counter
	pageDuration      prometheus.Histogram
	pageSize          prometheus.Histogram
	keyspaceSizeGauge prometheus.Gauge
}

// NewMigrationMetrics creates and registers new migration metrics
func NewMigrationMetrics(registry *prometheus.Registry) (*MigrationMetrics, error) {
	m := &MigrationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MigrationMetrics) initMetrics() {
	m.itemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flagmigrate_items_total",
			Help: "Total number of flagged posts by migration outcome",
		},
		[]string{"outcome"}, // created, already_flagged, skipped_inconsistent, failed
	)

	m.itemsAttempted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flagmigrate_items_attempted_total",
		Help: "Total number of flagged posts handed to the transformer",
	})

	m.itemsScanned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flagmigrate_items_scanned_total",
		Help: "Total number of posts walked in completed pages",
	})

	m.pagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flagmigrate_pages_total",
		Help: "Total number of pages migrated",
	})

	m.pageDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flagmigrate_page_duration_seconds",
		Help:    "Time taken to migrate one page",
		Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~20s
	})

	m.pageSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flagmigrate_page_size",
		Help:    "Number of posts per migrated page",
		Buckets: prometheus.ExponentialBuckets(PageSizeBucketStart, BucketFactor2, PageSizeBucketCount),
	})

	m.keyspaceSizeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flagmigrate_keyspace_size",
		Help: "Number of posts in the legacy keyspace at run start",
	})
}

// Describe implements the Collector interface
func (m *MigrationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.itemsTotal.Describe(ch)
	m.itemsAttempted.Describe(ch)
	m.itemsScanned.Describe(ch)
	m.pagesTotal.Describe(ch)
	m.pageDuration.Describe(ch)
	m.pageSize.Describe(ch)
	m.keyspaceSizeGauge.Describe(ch)
}

// Collect implements the Collector interface
func (m *MigrationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.itemsTotal.Collect(ch)
	m.itemsAttempted.Collect(ch)
	m.itemsScanned.Collect(ch)
	m.pagesTotal.Collect(ch)
	m.pageDuration.Collect(ch)
	m.pageSize.Collect(ch)
	m.keyspaceSizeGauge.Collect(ch)
}

// Incr counts one flagged post entering the transformer.
func (m *MigrationMetrics) Incr() {
	m.itemsAttempted.Inc()
}

// RecordOutcome counts the outcome of one flagged post.
func (m *MigrationMetrics) RecordOutcome(outcome migration.Outcome) {
	m.itemsTotal.WithLabelValues(string(outcome)).Inc()
}

// ObservePage records a completed page.
func (m *MigrationMetrics) ObservePage(size int, duration time.Duration) {
	m.pagesTotal.Inc()
	m.itemsScanned.Add(float64(size))
	m.pageSize.Observe(float64(size))
	m.pageDuration.Observe(duration.Seconds())
}

// SetTotal records the keyspace size.
func (m *MigrationMetrics) SetTotal(total int64) {
	m.keyspaceSizeGauge.Set(float64(total))
}
