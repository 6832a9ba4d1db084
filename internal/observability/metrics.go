package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "forecast_ingest"

// Metrics holds the Prometheus counters, histograms, and gauges for the ingest pipeline.
type Metrics struct {
	ParameterRuns      *prometheus.CounterVec   // labels: collection, parameter, outcome={success,fetch_failed,failed}
	ParameterDuration  *prometheus.HistogramVec // labels: collection, parameter
	FetchDuration      prometheus.Histogram
	BandsPublished     *prometheus.CounterVec // labels: collection, parameter
	BytesUploaded      prometheus.Counter
	PriorDeletions     prometheus.Counter
	CleanupErrors      prometheus.Counter
	LastSuccess        *prometheus.GaugeVec // labels: collection, parameter; unix seconds
	PipelineRunning    prometheus.Gauge
	NotificationErrors prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ParameterRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parameter_runs_total",
			Help:      "Parameter pipeline runs by outcome.",
		}, []string{"collection", "parameter", "outcome"}),
		ParameterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parameter_duration_seconds",
			Help:      "Duration of one parameter run from fetch through cleanup.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"collection", "parameter"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of upstream forecast requests.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		BandsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bands_published_total",
			Help:      "Single-band rasters written, one per forecast timestep.",
		}, []string{"collection", "parameter"}),
		BytesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes uploaded to object storage.",
		}),
		PriorDeletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prior_objects_deleted_total",
			Help:      "Objects removed from previous publications.",
		}),
		CleanupErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_errors_total",
			Help:      "Local intermediate files that could not be removed.",
		}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last committed publication.",
		}, []string{"collection", "parameter"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress.",
		}),
		NotificationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_errors_total",
			Help:      "Publication events that could not be delivered.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ParameterRuns,
		m.ParameterDuration,
		m.FetchDuration,
		m.BandsPublished,
		m.BytesUploaded,
		m.PriorDeletions,
		m.CleanupErrors,
		m.LastSuccess,
		m.PipelineRunning,
		m.NotificationErrors,
	}
}
