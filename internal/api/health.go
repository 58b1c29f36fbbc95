package api

import (
	"net/http"
	"time"

	"github.com/parlorhq/parlor/internal/room"
)

// HealthHandler reports process liveness plus coarse occupancy counts.
type HealthHandler struct {
	registry  *room.Registry
	startedAt time.Time
}

// NewHealthHandler creates the /health handler.
func NewHealthHandler(registry *room.Registry) *HealthHandler {
	return &HealthHandler{
		registry:  registry,
		startedAt: time.Now(),
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
	Users  int    `json:"users"`
	Uptime int64  `json:"uptime"` // seconds
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Rooms:  h.registry.RoomCount(),
		Users:  h.registry.UserCount(),
		Uptime: int64(time.Since(h.startedAt).Seconds()),
	})
}
