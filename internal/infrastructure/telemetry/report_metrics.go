package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Generation outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeEmpty    = "empty"
	OutcomeConflict = "conflict"
	OutcomeFailure  = "failure"
)

// ReportMetrics records sales report generations.
// A nil *ReportMetrics records nothing.
type ReportMetrics struct {
	duration    *prometheus.HistogramVec
	generations *prometheus.CounterVec
	rows        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

// NewReportMetrics registers the report metrics on the provided registerer
func NewReportMetrics(reg prometheus.Registerer) *ReportMetrics {
	if reg == nil {
		return &ReportMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "report_generation_duration_seconds",
		Help:      "Duration of sales report generations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind", "scope"})
	generations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "report_generations_total",
		Help:      "Sales report generations by outcome.",
	}, []string{"kind", "scope", "outcome"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "report_rows_written_total",
		Help:      "Sales report rows written.",
	}, []string{"kind"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "report_last_success_timestamp_seconds",
		Help:      "Unix time of the last successful generation.",
	}, []string{"kind"})
	reg.MustRegister(duration, generations, rows, lastSuccess)
	return &ReportMetrics{
		duration:    duration,
		generations: generations,
		rows:        rows,
		lastSuccess: lastSuccess,
	}
}

// ObserveGeneration records one finished generation
func (m *ReportMetrics) ObserveGeneration(kind, scope, outcome string, duration time.Duration, rows int) {
	if m == nil || m.duration == nil {
		return
	}
	kind = normalizeLabel(kind)
	scope = normalizeLabel(scope)
	m.duration.WithLabelValues(kind, scope).Observe(duration.Seconds())
	m.generations.WithLabelValues(kind, scope, normalizeLabel(outcome)).Inc()
	if rows > 0 {
		m.rows.WithLabelValues(kind).Add(float64(rows))
	}
	if outcome == OutcomeSuccess || outcome == OutcomeEmpty {
		m.lastSuccess.WithLabelValues(kind).SetToCurrentTime()
	}
}
