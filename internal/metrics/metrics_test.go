package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, m prometheus.Metric) *dto.Metric {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	return &out
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("x")))
}

func TestSince(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_duration_seconds", Help: "test"})
	Since(h, time.Now().Add(-time.Second))
	got := write(t, h).GetHistogram()
	assert.Equal(t, uint64(1), got.GetSampleCount())
	assert.GreaterOrEqual(t, got.GetSampleSum(), 1.0)
}

func TestCounters(t *testing.T) {
	c := RiskBandTotal.WithLabelValues("low")
	before := write(t, c).GetCounter().GetValue()
	c.Inc()
	assert.Equal(t, before+1, write(t, c).GetCounter().GetValue())

	ModelsReady.Set(1)
	assert.Equal(t, 1.0, write(t, ModelsReady).GetGauge().GetValue())
}
