// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SnapshotsWritten counts snapshots the backtest runner persisted.
	SnapshotsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_snapshots_written_total",
		Help: "Forecast snapshots written by backtest runs",
	}, []string{"model", "metric"})

	// JobsRunning tracks backtest jobs currently executing.
	JobsRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backtest_jobs_running",
		Help: "Backtest jobs currently in flight",
	})

	// JobsFinished counts finished jobs by terminal status.
	JobsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_jobs_finished_total",
		Help: "Backtest jobs finished, by status",
	}, []string{"status"})

	// BackfillRows counts snapshots annotated with actuals.
	BackfillRows = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backfill_actuals_filled_total",
		Help: "Snapshots filled with actuals by the backfill",
	})

	// HTTPRequests counts API requests by method and status class.
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "API requests served",
	}, []string{"method", "status"})
)

func init() {
	prometheus.MustRegister(
		SnapshotsWritten,
		JobsRunning,
		JobsFinished,
		BackfillRows,
		HTTPRequests,
	)
}

// Handler returns the /metrics endpoint handler
func Handler() http.Handler {
	return promhttp.Handler()
}
