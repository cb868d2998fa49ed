package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Upload(OutcomeAccepted)
	m.Upload(OutcomeAccepted)
	m.Upload(OutcomeRejected)
	m.Extraction(ResultFallback)
	m.RetentionRemoved.Add(3)
	m.ObserveStage(StageConvert, time.Now().Add(-time.Second))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Uploads.WithLabelValues(OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Extractions.WithLabelValues(ResultFallback)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RetentionRemoved))

	n, err := testutil.GatherAndCount(reg, "invoice_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNopIsUsable(t *testing.T) {
	m := Nop()
	m.Upload(OutcomeFailed)
	m.Extraction(ResultModel)
	m.ObserveStage(StageOCR, time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues(OutcomeFailed)))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
