package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "co2pipeline_runs_total",
			Help: "Total transform pipeline runs",
		},
		[]string{"status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "co2pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"stage"},
	)

	StageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "co2pipeline_stage_failures_total",
			Help: "Total pipeline stage failures",
		},
		[]string{"stage"},
	)

	RowsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "co2pipeline_rows_processed_total",
			Help: "Total rows that completed the pipeline",
		},
	)

	RowsImputed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "co2pipeline_rows_imputed_total",
			Help: "Total measurement cells filled by interpolation",
		},
	)

	LastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "co2pipeline_last_success_timestamp_seconds",
			Help: "Unix time of the last successful pipeline run",
		},
	)
)

// WriteTextfile writes the default registry in the node-exporter textfile
// collector format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
