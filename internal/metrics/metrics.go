// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesTotal counts parser results by wire format and status
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edie_messages_total",
			Help: "Total number of messages returned by the parser",
		},
		[]string{"format", "status"},
	)

	// SkippedTotal counts frames dropped because they failed to decode or encode
	SkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edie_skipped_frames_total",
			Help: "Total number of frames skipped by the parser",
		},
		[]string{"status"},
	)

	// UnknownBytesTotal counts bytes not recognised as any frame
	UnknownBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edie_unknown_bytes_total",
			Help: "Total number of unrecognised input bytes",
		},
	)

	// InputBytesTotal counts bytes read from the source
	InputBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edie_input_bytes_total",
			Help: "Total number of bytes read from the input source",
		},
		[]string{"source"},
	)

	// InputPercentRead tracks progress through a bounded input
	InputPercentRead = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edie_input_percent_read",
			Help: "Percentage of the input source consumed",
		},
		[]string{"source"},
	)

	// ParseLatencySeconds measures the time spent producing one result
	ParseLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "edie_parse_latency_seconds",
			Help:    "Latency of parsing one message in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1us to ~1s
		},
	)

	// ReporterErrorsTotal counts reporter errors by name
	ReporterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edie_reporter_errors_total",
			Help: "Total number of reporter errors",
		},
		[]string{"reporter"},
	)

	// PipelineStatus tracks whether the pipeline is running
	PipelineStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "edie_pipeline_status",
			Help: "Current pipeline status (0=stopped, 1=running, 2=error)",
		},
	)
)

const (
	StatusStopped = 0
	StatusRunning = 1
	StatusError   = 2
)
