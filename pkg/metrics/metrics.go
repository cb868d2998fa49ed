package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Upload outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Extraction results.
const (
	ResultModel    = "model"
	ResultFallback = "fallback"
)

// Pipeline stages timed by StageDuration.
const (
	StageConvert = "convert"
	StageDocQA   = "docqa"
	StageOCR     = "ocr"
)

// Metrics holds the application collectors.
type Metrics struct {
	Uploads          *prometheus.CounterVec
	Extractions      *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	RetentionRemoved prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_uploads_total",
				Help: "Total number of invoice uploads by outcome",
			},
			[]string{"outcome"},
		),
		Extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_extractions_total",
				Help: "Total number of extractions by result",
			},
			[]string{"result"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "invoice_stage_duration_seconds",
				Help:    "Duration of pipeline stages",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		RetentionRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "invoice_retention_removed_total",
				Help: "Total number of files removed by the retention sweeper",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Uploads, m.Extractions, m.StageDuration, m.RetentionRemoved)
	}
	return m
}

// Nop returns unregistered collectors.
func Nop() *Metrics {
	return NewMetrics(nil)
}

// ObserveStage records the time elapsed since start for stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Upload(outcome string) {
	m.Uploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Extraction(result string) {
	m.Extractions.WithLabelValues(result).Inc()
}
