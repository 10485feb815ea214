package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// ElevationRequestsSubmitted counts submitted elevation requests by requested role.
	ElevationRequestsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planit_elevation_requests_submitted_total",
		Help: "Total number of elevation requests submitted by requested role",
	}, []string{"role"})

	// ElevationDecisions counts decided elevation requests by outcome.
	ElevationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planit_elevation_decisions_total",
		Help: "Total number of elevation request decisions by outcome",
	}, []string{"outcome"})

	// NotificationFailures counts dropped outbound notifications by stage.
	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planit_notification_failures_total",
		Help: "Total number of outbound notification failures by stage",
	}, []string{"stage"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planit_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	latency := time.Since(start).Seconds()
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(latency)
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}
