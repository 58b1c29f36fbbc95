// Package metrics exposes the process's Prometheus instruments. Everything
// registers against the default registry and is served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoomsActive tracks live rooms.
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parlor_rooms_active",
		Help: "Number of live rooms.",
	})

	// RoomMembers tracks connections currently inside a room.
	RoomMembers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parlor_room_members",
		Help: "Number of connections currently joined to a room.",
	})

	// VoicePeers tracks active voice peers across all rooms.
	VoicePeers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parlor_voice_peers",
		Help: "Number of active voice peers across all rooms.",
	})

	// EventsTotal counts inbound websocket events by type.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlor_ws_events_total",
		Help: "Inbound websocket events by type.",
	}, []string{"type"})

	// CommentsCacheHits counts comment proxy cache hits.
	CommentsCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlor_comments_cache_hits_total",
		Help: "Comment proxy responses served from cache.",
	})

	// CommentsUpstreamErrors counts failed upstream comment fetches.
	CommentsUpstreamErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlor_comments_upstream_errors_total",
		Help: "Failed upstream comment fetch attempts, per instance try.",
	})

	// TitleLookupFailures counts failed oEmbed title lookups.
	TitleLookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlor_title_lookup_failures_total",
		Help: "Failed oEmbed title lookups.",
	})
)
