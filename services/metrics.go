package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bündelt die Prometheus-Metriken der Pipeline. Ein nil-Zeiger ist erlaubt und zählt nichts.
type Metrics struct {
	PagesFetched    prometheus.Counter
	RecordsInserted *prometheus.CounterVec
	RecordsSkipped  *prometheus.CounterVec
	RecordsDropped  *prometheus.CounterVec
	StepDuration    *prometheus.HistogramVec
	StepFailures    *prometheus.CounterVec
}

// NewMetrics erstellt die Metriken, ohne sie zu registrieren.
func NewMetrics() *Metrics {
	return &Metrics{
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mag_pages_fetched_total",
			Help: "Total number of result pages fetched from the MAG API.",
		}),
		RecordsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_records_inserted_total",
			Help: "Total number of records inserted per table.",
		}, []string{"table"}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_records_skipped_total",
			Help: "Total number of records skipped because their key already exists.",
		}, []string{"table"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_records_dropped_total",
			Help: "Total number of records not written, by reason (unknown_code, no_match).",
		}, []string{"table", "reason"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_step_duration_seconds",
			Help:    "Duration of pipeline steps.",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"step"}),
		StepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_step_failures_total",
			Help: "Total number of failed pipeline steps.",
		}, []string{"step"}),
	}
}

// Register registriert alle Metriken bei reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.PagesFetched, m.RecordsInserted, m.RecordsSkipped, m.RecordsDropped, m.StepDuration, m.StepFailures} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) pageFetched() {
	if m == nil {
		return
	}
	m.PagesFetched.Inc()
}

func (m *Metrics) records(table string, inserted, skipped int) {
	if m == nil {
		return
	}
	m.RecordsInserted.WithLabelValues(table).Add(float64(inserted))
	m.RecordsSkipped.WithLabelValues(table).Add(float64(skipped))
}

func (m *Metrics) dropped(table, reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RecordsDropped.WithLabelValues(table, reason).Add(float64(n))
}

func (m *Metrics) stepDone(step string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
	if err != nil {
		m.StepFailures.WithLabelValues(step).Inc()
	}
}
