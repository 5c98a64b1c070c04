package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// risk pipeline.
type Metrics struct {
	RowsLoaded      *prometheus.CounterVec // labels: source
	SchemaErrors    *prometheus.CounterVec // labels: source
	RecordsMerged   prometheus.Counter
	RecordsExported prometheus.Counter
	PipelineRunning prometheus.Gauge

	StageDuration *prometheus.HistogramVec // labels: stage={load,normalize,merge,derive,forecast,export,publish}

	// Forecast client metrics.
	ForecastRequests *prometheus.CounterVec // labels: mode={timeseries,textgen}, outcome={success,error,skipped}
	ForecastDuration prometheus.Histogram
	ForecastEnabled  prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "county_risk",
			Name:      "rows_loaded_total",
			Help:      "Raw rows read per source file.",
		}, []string{"source"}),
		SchemaErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "county_risk",
			Name:      "schema_errors_total",
			Help:      "Rows rejected during normalization per source.",
		}, []string{"source"}),
		RecordsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "county_risk",
			Name:      "records_merged_total",
			Help:      "Merged time series records produced per run.",
		}),
		RecordsExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "county_risk",
			Name:      "records_exported_total",
			Help:      "Risk records written to the processed output.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "county_risk",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is active, 0 otherwise.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "county_risk",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		ForecastRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "county_risk",
			Name:      "forecast_requests_total",
			Help:      "Forecast model calls by mode and outcome.",
		}, []string{"mode", "outcome"}),
		ForecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "county_risk",
			Name:      "forecast_duration_seconds",
			Help:      "Forecast API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ForecastEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "county_risk",
			Name:      "forecast_enabled",
			Help:      "1 when the forecast stage is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.RowsLoaded,
		m.SchemaErrors,
		m.RecordsMerged,
		m.RecordsExported,
		m.PipelineRunning,
		m.StageDuration,
		m.ForecastRequests,
		m.ForecastDuration,
		m.ForecastEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RowsLoaded:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "county_risk", Name: "rows_loaded_total"}, []string{"source"}),
		SchemaErrors:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "county_risk", Name: "schema_errors_total"}, []string{"source"}),
		RecordsMerged:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "county_risk", Name: "records_merged_total"}),
		RecordsExported:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "county_risk", Name: "records_exported_total"}),
		PipelineRunning:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "county_risk", Name: "pipeline_running"}),
		StageDuration:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "county_risk", Name: "stage_duration_seconds"}, []string{"stage"}),
		ForecastRequests: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "county_risk", Name: "forecast_requests_total"}, []string{"mode", "outcome"}),
		ForecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "county_risk", Name: "forecast_duration_seconds"}),
		ForecastEnabled:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "county_risk", Name: "forecast_enabled"}),
	}
}
