package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the engine.
type Metrics struct {
	ObservationsIngested prometheus.Counter
	StoreSize            prometheus.Gauge

	PersistRuns *prometheus.CounterVec // labels: outcome={success,error}

	Composes     *prometheus.CounterVec // labels: outcome={ok,degraded,error}
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss}

	AdapterRequests *prometheus.CounterVec   // labels: provider, outcome={success,error}
	AdapterDuration *prometheus.HistogramVec // labels: provider
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates the metrics against an explicit registerer.
// Tests use a fresh registry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ObservationsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sprinkler_weather",
			Name:      "observations_ingested_total",
			Help:      "Total weather-station samples accepted by the store.",
		}),
		StoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sprinkler_weather",
			Name:      "observation_store_size",
			Help:      "Number of samples currently held in the observation store.",
		}),
		PersistRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sprinkler_weather",
			Name:      "persist_runs_total",
			Help:      "Observation snapshot persistence attempts by outcome.",
		}, []string{"outcome"}),
		Composes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sprinkler_weather",
			Name:      "composes_total",
			Help:      "Hybrid series compositions by outcome.",
		}, []string{"outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sprinkler_weather",
			Name:      "compose_cache_lookups_total",
			Help:      "Composer cache lookups by result.",
		}, []string{"result"}),
		AdapterRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sprinkler_weather",
			Name:      "adapter_requests_total",
			Help:      "Upstream forecast fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		AdapterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sprinkler_weather",
			Name:      "adapter_request_duration_seconds",
			Help:      "Upstream forecast fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
	}

	reg.MustRegister(
		m.ObservationsIngested,
		m.StoreSize,
		m.PersistRuns,
		m.Composes,
		m.CacheLookups,
		m.AdapterRequests,
		m.AdapterDuration,
	)

	return m
}
