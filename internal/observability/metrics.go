package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// accident pipeline.
type Metrics struct {
	RecordsIngested prometheus.Counter
	RecordsDropped  *prometheus.CounterVec // labels: stage, reason
	RecordsWritten  prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Spatial join metrics.
	JoinMatched   prometheus.Counter
	JoinUnmatched prometheus.Counter
	JoinDistance  prometheus.Histogram // meters, matched records only

	// Stage timing.
	StageDuration *prometheus.HistogramVec // label: stage

	// Kafka sink metrics.
	RecordsPublished prometheus.Counter
	SinkEnabled      prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.RecordsIngested,
		m.RecordsDropped,
		m.RecordsWritten,
		m.PipelineRunning,
		m.JoinMatched,
		m.JoinUnmatched,
		m.JoinDistance,
		m.StageDuration,
		m.RecordsPublished,
		m.SinkEnabled,
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
		RecordsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "accident_etl",
			Name:      "records_ingested_total",
			Help:      "Total accident records read from the source CSV.",
		}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accident_etl",
			Name:      "records_dropped_total",
			Help:      "Records dropped per stage, by reason.",
		}, []string{"stage", "reason"}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "accident_etl",
			Name:      "records_written_total",
			Help:      "Integrated records persisted to the output dataset.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "accident_etl",
			Name:      "pipeline_running",
			Help:      "1 while the pipeline is active, 0 when finished.",
		}),
		JoinMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "accident_etl",
			Name:      "join_matched_total",
			Help:      "Accidents matched to a road segment within the distance threshold.",
		}),
		JoinUnmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "accident_etl",
			Name:      "join_unmatched_total",
			Help:      "Accidents with no road segment within the distance threshold.",
		}),
		JoinDistance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "accident_etl",
			Name:      "join_distance_meters",
			Help:      "Distance from accident point to matched road segment.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 35, 50, 75, 100, 150, 250},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "accident_etl",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"stage"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "accident_etl",
			Name:      "records_published_total",
			Help:      "Integrated records published to the Kafka sink topic.",
		}),
		SinkEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "accident_etl",
			Name:      "sink_enabled",
			Help:      "1 when the Kafka sink is enabled, 0 otherwise.",
		}),
	}
}
