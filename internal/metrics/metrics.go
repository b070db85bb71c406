// Package metrics holds the Prometheus instruments of the field service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClusterTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "field_cluster_tick_duration_seconds",
		Help:    "Duration of one clustering pass inside the worker",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})

	ClustersEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "field_clusters_emitted_total",
		Help: "Total number of clusters returned by clustering passes",
	})

	TilesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "field_tiles_dropped_total",
		Help: "Tiles discarded before aggregation, by reason",
	}, []string{"reason"})

	ConvergenceEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "field_convergence_events_total",
		Help: "Total number of convergence events predicted",
	})

	SignalsThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "field_signals_throttled_total",
		Help: "Signal requests answered from the rate-limit cache",
	})

	WorkerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "field_worker_queue_depth",
		Help: "Requests waiting in the cluster worker mailbox",
	})

	EngineResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "field_engine_resets_total",
		Help: "Number of engine resets",
	})

	FramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "field_timelapse_frames_captured_total",
		Help: "Time-lapse frames pushed into the ring buffer",
	})

	MarkersEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "field_timelapse_markers_total",
		Help: "Timeline markers extracted from captured frames, by kind",
	}, []string{"kind"})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "field_stream_clients",
		Help: "Connected websocket stream clients",
	})
)
