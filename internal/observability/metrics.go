package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// aggregation pipeline.
type Metrics struct {
	RowsExtracted   *prometheus.CounterVec // labels: feed={locations,details}
	EventsJoined    prometheus.Counter
	EventsLocated   prometheus.Counter
	EventsUnmatched prometheus.Counter // joined events intersecting no region
	ResultsLoaded   *prometheus.CounterVec // labels: sink={csv,kafka}

	RegionsLoaded   prometheus.Gauge
	PipelineRunning prometheus.Gauge
	StageDuration   *prometheus.HistogramVec // labels: stage

	FetchRequests *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsExtracted,
		m.EventsJoined,
		m.EventsLocated,
		m.EventsUnmatched,
		m.ResultsLoaded,
		m.RegionsLoaded,
		m.PipelineRunning,
		m.StageDuration,
		m.FetchRequests,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_agg",
			Name:      "rows_extracted_total",
			Help:      "Feed rows decoded from the source, by feed type.",
		}, []string{"feed"}),
		EventsJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_agg",
			Name:      "events_joined_total",
			Help:      "Rows produced by the inner join of locations and details.",
		}),
		EventsLocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_agg",
			Name:      "events_located_total",
			Help:      "Located event rows after region fan-out.",
		}),
		EventsUnmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_agg",
			Name:      "events_unmatched_total",
			Help:      "Joined events whose point intersects no grid region.",
		}),
		ResultsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_agg",
			Name:      "results_loaded_total",
			Help:      "Dominant-category rows written, by sink.",
		}, []string{"sink"}),
		RegionsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_agg",
			Name:      "regions_loaded",
			Help:      "Number of grid polygons in the spatial index.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_agg",
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storm_agg",
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_agg",
			Name:      "fetch_requests_total",
			Help:      "Feed download attempts against the NCEI listing, by outcome.",
		}, []string{"outcome"}),
	}
}
