// Package metrics holds the Prometheus instrumentation for the
// marquee daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RotationAdvances counts index changes by what triggered them
	// (timer, manual, select).
	RotationAdvances = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_rotation_advances_total",
		Help: "Total number of rotation index changes, by trigger.",
	}, []string{"trigger"})

	// RotationItems tracks the size of the active announcement list.
	RotationItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marquee_rotation_items",
		Help: "Number of announcements in the current rotation list.",
	})

	// RotationIndex tracks the rotation position currently on screen.
	RotationIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marquee_rotation_current_index",
		Help: "Index of the announcement currently on screen.",
	})

	// RefreshRuns counts refresh poller runs by outcome.
	RefreshRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_refresh_total",
		Help: "Total number of refresh poller runs, by result.",
	}, []string{"result"})

	// RefreshInterval reports the active poll cadence.
	RefreshInterval = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marquee_refresh_interval_minutes",
		Help: "Current refresh poll cadence in minutes.",
	})

	// WakefulFailures counts wakefulness layer failures. The layers
	// keep running; this only surfaces degradation.
	WakefulFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_wakeful_failures_total",
		Help: "Total number of wakefulness layer failures, by layer.",
	}, []string{"layer"})

	// SpoolDownloads counts preload spool downloads by result.
	SpoolDownloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_media_spool_downloads_total",
		Help: "Total number of media spool downloads, by result.",
	}, []string{"result"})

	// SpoolEvictions counts media files dropped from the spool after
	// leaving the preload window.
	SpoolEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marquee_media_spool_evictions_total",
		Help: "Total number of media files evicted from the spool.",
	})
)
