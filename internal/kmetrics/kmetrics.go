// Package kmetrics exposes Prometheus counters and gauges for the
// live watch tree, grounded on syncthing's promauto-based metrics
// (lib/fs/metrics.go) and served by internal/statusapi.
package kmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WatchesOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kqinotify",
		Name:      "watches_open",
		Help:      "Number of user-requested i_watch instances currently open.",
	})

	SubwatchesOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kqinotify",
		Name:      "subwatches_open",
		Help:      "Number of dependency vnode watches currently open across all i_watch instances.",
	})

	RescansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kqinotify",
		Name:      "rescans_total",
		Help:      "Total number of directory rescans triggered by NOTE_WRITE on a watched directory.",
	})

	EventsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kqinotify",
		Name:      "events_emitted_total",
		Help:      "Total number of synthesized inotify events, by mask name.",
	}, []string{"op"})
)
