/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics for the playback engine.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the playback lifecycle instruments.
type Metrics struct {
	registry *prometheus.Registry

	ItemsEnqueued     prometheus.Counter
	StreamsStarted    prometheus.Counter
	StreamsFailed     prometheus.Counter
	ItemsSkipped      prometheus.Counter
	MutedDiscards     prometheus.Counter
	FallbackAttempts  prometheus.Counter
	FallbackSuccesses prometheus.Counter
	NotifierUpdates   prometheus.Counter
	ActiveSessions    prometheus.Gauge
}

// New registers the playback metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ItemsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "bragi_items_enqueued_total",
			Help: "Playback items appended to a queue.",
		}),
		StreamsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "bragi_streams_started_total",
			Help: "Streams accepted by the transport.",
		}),
		StreamsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "bragi_streams_failed_total",
			Help: "Transport connect rejections, including failed fallback retries.",
		}),
		ItemsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "bragi_items_skipped_total",
			Help: "Items dropped after unrecoverable start failures.",
		}),
		MutedDiscards: factory.NewCounter(prometheus.CounterOpts{
			Name: "bragi_muted_discards_total",
			Help: "Items silently drained from muted chats.",
		}),
		FallbackAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "bragi_fallback_attempts_total",
			Help: "Local re-acquisition attempts for remote sources.",
		}),
		FallbackSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "bragi_fallback_successes_total",
			Help: "Fallback acquisitions that produced a playable local file.",
		}),
		NotifierUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "bragi_notifier_updates_total",
			Help: "In-place control message refreshes issued by progress notifiers.",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bragi_active_sessions",
			Help: "Chats with an active playback session.",
		}),
	}
}

// Handler exposes the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
