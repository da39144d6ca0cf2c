// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Batch metrics
	RunsTotal            *prometheus.CounterVec
	RunDuration          *prometheus.HistogramVec
	JobsTotal            *prometheus.CounterVec
	JobDuration          *prometheus.HistogramVec
	JobFailures          *prometheus.CounterVec
	BatchShapeMismatches prometheus.Counter

	// Strategy metrics
	TradesReconstructed prometheus.Counter
	ExitsTotal          *prometheus.CounterVec
	MissingColumns      *prometheus.CounterVec

	// Ingest metrics
	FramesIngested prometheus.Counter
	RowsIngested   prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "hft_multifactor"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Batch metrics
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "Total number of batch runs by mode and status",
		}, []string{"mode", "status"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "run_duration_seconds",
			Help:      "Batch run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"mode"}),
		JobsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "jobs_total",
			Help:      "Total number of instrument-day jobs by stage and status",
		}, []string{"stage", "status"}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "job_duration_seconds",
			Help:      "Instrument-day job duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		JobFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "job_failures_total",
			Help:      "Total number of failed jobs by failure kind",
		}, []string{"kind"}),
		BatchShapeMismatches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "shape_mismatches_total",
			Help:      "Dates whose instrument count differs from the expected count",
		}),

		// Strategy metrics
		TradesReconstructed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_reconstructed_total",
			Help:      "Total number of trades reconstructed",
		}),
		ExitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "exits_total",
			Help:      "Total number of position exits by reason",
		}, []string{"reason"}),
		MissingColumns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "missing_columns_total",
			Help:      "Frames computed in degraded mode by missing column",
		}, []string{"column"}),

		// Ingest metrics
		FramesIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "frames_total",
			Help:      "Total number of instrument-day frames ingested",
		}),
		RowsIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows_total",
			Help:      "Total number of market rows ingested",
		}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful batch run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// OrDefault returns m, or DefaultMetrics when m is nil.
func OrDefault(m *Metrics) *Metrics {
	if m == nil {
		return DefaultMetrics
	}
	return m
}

// RecordJob records one instrument-day job.
func (m *Metrics) RecordJob(stage, status string, seconds float64) {
	m.JobsTotal.WithLabelValues(stage, status).Inc()
	m.JobDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordFailure records a failed job by kind.
func (m *Metrics) RecordFailure(kind string) {
	m.JobFailures.WithLabelValues(kind).Inc()
}

// RecordTrades adds reconstructed trades.
func (m *Metrics) RecordTrades(n int) {
	m.TradesReconstructed.Add(float64(n))
}

// RecordExits adds exit counts by reason.
func (m *Metrics) RecordExits(counts map[string]int) {
	for reason, n := range counts {
		m.ExitsTotal.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordMissingColumns records columns replaced by undefined values.
func (m *Metrics) RecordMissingColumns(columns []string) {
	for _, c := range columns {
		m.MissingColumns.WithLabelValues(c).Inc()
	}
}

// RecordBatchShapeMismatch records a date with an unexpected instrument count.
func (m *Metrics) RecordBatchShapeMismatch() {
	m.BatchShapeMismatches.Inc()
}

// RecordRun records a batch run.
func (m *Metrics) RecordRun(mode, status string, seconds float64, finishedUnix int64) {
	m.RunsTotal.WithLabelValues(mode, status).Inc()
	m.RunDuration.WithLabelValues(mode).Observe(seconds)
	if status == "success" {
		m.LastSuccessfulRun.Set(float64(finishedUnix))
	}
}

// RecordIngest records one ingested frame.
func (m *Metrics) RecordIngest(rows int) {
	m.FramesIngested.Inc()
	m.RowsIngested.Add(float64(rows))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
