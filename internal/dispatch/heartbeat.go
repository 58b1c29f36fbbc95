package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/parlorhq/parlor/internal/domain"
	"github.com/parlorhq/parlor/internal/room"
	"github.com/parlorhq/parlor/internal/websocket"
)

// HeartbeatInterval is how often playing rooms get a correction snapshot.
const HeartbeatInterval = 3 * time.Second

// Heartbeat periodically rebroadcasts the playback snapshot to rooms that
// are actively watching together. The snapshot is advisory: it reuses the
// current seq, so clients that already saw a newer live update drop it.
type Heartbeat struct {
	registry *room.Registry
	hub      *websocket.Hub
	clock    domain.Clock
	interval time.Duration
	logger   *slog.Logger
}

// NewHeartbeat creates the ticker over the given registry.
func NewHeartbeat(registry *room.Registry, hub *websocket.Hub, clock domain.Clock, logger *slog.Logger) *Heartbeat {
	return &Heartbeat{
		registry: registry,
		hub:      hub,
		clock:    clock,
		interval: HeartbeatInterval,
		logger:   logger.With("component", "heartbeat"),
	}
}

// Run ticks until the context is cancelled.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Tick()
		}
	}
}

// Tick broadcasts one round of heartbeats. A room is eligible when at least
// two participants are present, a video is loaded, and it is playing.
func (h *Heartbeat) Tick() {
	now := h.clock.Now()
	h.registry.ForEach(func(r *room.Room) {
		if r.Size() < 2 || r.Video.VideoType == domain.VideoTypeNone || !r.Video.IsPlaying {
			return
		}
		h.hub.BroadcastToRoom(r.Code, websocket.EventVideoHeartbeat, r.Video.Snapshot(now))
	})
}
