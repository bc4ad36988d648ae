// Package metrics holds the Prometheus collectors of the forecasting core.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "solar_forecast"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	CacheHits         *prometheus.CounterVec
	CacheMisses       *prometheus.CounterVec
	CacheLoadFailures *prometheus.CounterVec
	Predictions       *prometheus.CounterVec
	PredictionLatency *prometheus.HistogramVec
	IndexTimestamps   *prometheus.GaugeVec
	IndexInverters    *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Lookups served from a populated cache entry",
			},
			[]string{"cache"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Lookups that had to populate a cache entry",
			},
			[]string{"cache"},
		),
		CacheLoadFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_load_failures_total",
				Help:      "Cache population attempts that returned an error",
			},
			[]string{"cache"},
		),
		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Prediction requests by plant and outcome",
			},
			[]string{"plant", "outcome"},
		),
		PredictionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "prediction_duration_seconds",
				Help:      "Time spent serving a prediction request",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"plant"},
		),
		IndexTimestamps: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_prediction_timestamps",
				Help:      "Prediction timestamps in the latest index",
			},
			[]string{"plant"},
		),
		IndexInverters: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_inverters",
				Help:      "Inverters in the latest index",
			},
			[]string{"plant"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.CacheHits,
			m.CacheMisses,
			m.CacheLoadFailures,
			m.Predictions,
			m.PredictionLatency,
			m.IndexTimestamps,
			m.IndexInverters,
		)
	}
	return m
}

func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(cache).Inc()
}

func (m *Metrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(cache).Inc()
}

func (m *Metrics) CacheLoadFailed(cache string) {
	if m == nil {
		return
	}
	m.CacheLoadFailures.WithLabelValues(cache).Inc()
}

// ObservePrediction records one request outcome ("success" or an error kind).
func (m *Metrics) ObservePrediction(plant int, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	p := strconv.Itoa(plant)
	m.Predictions.WithLabelValues(p, outcome).Inc()
	m.PredictionLatency.WithLabelValues(p).Observe(d.Seconds())
}

// SetIndexSize publishes the totals of a freshly built index.
func (m *Metrics) SetIndexSize(plant, inverters, timestamps int) {
	if m == nil {
		return
	}
	p := strconv.Itoa(plant)
	m.IndexInverters.WithLabelValues(p).Set(float64(inverters))
	m.IndexTimestamps.WithLabelValues(p).Set(float64(timestamps))
}

// WriteTextfile dumps g in the Prometheus text format, for node exporter
// textfile collection after batch runs.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
