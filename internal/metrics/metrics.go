// Package metrics holds the prometheus collectors of the discovery engine
// and its HTTP surface. They register with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan metrics
var (
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsniff_scans_total",
			Help: "Total number of completed discovery scans",
		},
		[]string{"reason"}, // "start", "refresh", "mutation"
	)

	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidsniff_scan_duration_seconds",
			Help:    "Discovery scan duration in seconds, snapshot included",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"reason"},
	)

	SnapshotFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidsniff_snapshot_failures_total",
			Help: "Total number of scans aborted because no document snapshot could be taken",
		},
	)

	ScanInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidsniff_scan_in_progress",
			Help: "Whether a scan is currently running (1 = scanning, 0 = idle)",
		},
	)

	VideosCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidsniff_videos",
			Help: "Number of videos in the current result set",
		},
	)
)

// Scanner metrics
var (
	ScannerCandidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsniff_scanner_candidates_total",
			Help: "Total number of candidates produced per scanner, before deduplication",
		},
		[]string{"scanner"},
	)

	ScannerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsniff_scanner_failures_total",
			Help: "Total number of scanner passes that failed and contributed nothing",
		},
		[]string{"scanner"},
	)

	DuplicatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidsniff_duplicates_dropped_total",
			Help: "Total number of candidates discarded because their URL was already seen",
		},
	)
)

// Mutation watcher metrics
var (
	MutationBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsniff_mutation_batches_total",
			Help: "Total number of observed mutation batches",
		},
		[]string{"relevant"}, // "true", "false"
	)

	DebouncedScans = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidsniff_debounced_scans_total",
			Help: "Total number of re-scans fired by the mutation debounce timer",
		},
	)
)

// Download metrics
var (
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsniff_downloads_total",
			Help: "Total number of finished downloads",
		},
		[]string{"status"}, // "complete", "failed", "skipped", "rejected"
	)

	DownloadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidsniff_download_bytes_total",
			Help: "Total number of bytes written by downloads",
		},
	)

	DownloadsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidsniff_downloads_active",
			Help: "Number of downloads currently running",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidsniff_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidsniff_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
