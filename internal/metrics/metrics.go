package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Command metrics
var (
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lu_commands_total",
			Help: "Total number of commands handled by the player module",
		},
		[]string{"type", "result"},
	)
)

// Playback metrics
var (
	MediaLoadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lu_media_loads_total",
			Help: "Total number of media loads issued to the widget",
		},
	)

	MediaRestartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lu_media_restarts_total",
			Help: "Total number of restarts from resubmitting the loaded identifier",
		},
	)

	RepeatRangeLoopsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lu_repeat_range_loops_total",
			Help: "Total number of seeks back to the repeat range start",
		},
	)

	TracksEndedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lu_tracks_ended_total",
			Help: "Total number of end-of-track events by outcome",
		},
		[]string{"outcome"}, // "repeat", "advance", "stop"
	)

	StaleCallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lu_stale_widget_callbacks_total",
			Help: "Widget callbacks dropped because they belonged to a previous media session",
		},
	)
)

// Playlist metrics
var (
	PlaylistMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lu_playlist_mutations_total",
			Help: "Total number of applied playlist mutations",
		},
		[]string{"op"},
	)

	PersistenceFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lu_playlist_persist_failures_total",
			Help: "Total number of failed playlist writes",
		},
	)

	PersistenceOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lu_persistence_ops_total",
			Help: "Total number of persistence port operations",
		},
		[]string{"backend", "op", "status"},
	)

	PersistenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lu_persistence_duration_seconds",
			Help:    "Persistence port operation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"backend", "op"},
	)
)
