package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CacheHit("models")
	m.CacheHit("models")
	m.CacheMiss("models")
	m.CacheLoadFailed("scalers")
	m.ObservePrediction(1, "success", 3*time.Millisecond)
	m.ObservePrediction(1, "PredictionNotAllowed", time.Millisecond)
	m.SetIndexSize(2, 24, 1000)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("models")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues("models")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLoadFailures.WithLabelValues("scalers")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions.WithLabelValues("1", "success")))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.IndexTimestamps.WithLabelValues("2")))
	assert.Equal(t, 24.0, testutil.ToFloat64(m.IndexInverters.WithLabelValues("2")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PredictionLatency))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheHit("x")
		m.CacheMiss("x")
		m.CacheLoadFailed("x")
		m.ObservePrediction(1, "success", time.Second)
		m.SetIndexSize(1, 1, 1)
	})
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetIndexSize(1, 22, 68000)

	path := filepath.Join(t.TempDir(), "forecast.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `solar_forecast_index_prediction_timestamps{plant="1"} 68000`)
}
