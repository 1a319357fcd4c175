// Package metrics provides Prometheus metrics for the forest and its hashing jobs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	hashJobsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appifi_hash_jobs_started_total",
			Help: "Total number of hashing jobs started",
		},
	)

	hashJobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appifi_hash_jobs_finished_total",
			Help: "Total number of hashing jobs finished, by outcome",
		},
		[]string{"outcome"},
	)

	hashBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appifi_hash_bytes_total",
			Help: "Total bytes read by hashing jobs",
		},
	)

	indexDigests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "appifi_index_digests",
			Help: "Number of distinct digests in the content index",
		},
	)

	filesMissing = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appifi_files_missing_total",
			Help: "Hashing jobs whose target path had vanished",
		},
	)
)

// RecordJobStarted counts a hashing job launch.
func RecordJobStarted() {
	hashJobsStarted.Inc()
}

// RecordJobFinished counts a finished job and the bytes it read.
func RecordJobFinished(outcome string, bytes int64) {
	hashJobsFinished.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		hashBytes.Add(float64(bytes))
	}
}

// SetIndexDigests updates the index size gauge.
func SetIndexDigests(n int) {
	indexDigests.Set(float64(n))
}

// RecordFileMissing counts a "file missing" notification.
func RecordFileMissing() {
	filesMissing.Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
