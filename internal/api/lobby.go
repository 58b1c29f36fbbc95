package api

import (
	"net/http"

	"github.com/parlorhq/parlor/internal/room"
)

type lobbyResponse struct {
	Enabled bool                `json:"enabled"`
	Rooms   []room.LobbySummary `json:"rooms"`
}

// LobbyHandler lists visible rooms for the public lobby. When disabled by
// config it still answers, with an empty list, so clients need no special
// casing.
type LobbyHandler struct {
	registry *room.Registry
	enabled  bool
}

// NewLobbyHandler creates the /rooms handler.
func NewLobbyHandler(registry *room.Registry, enabled bool) *LobbyHandler {
	return &LobbyHandler{registry: registry, enabled: enabled}
}

func (h *LobbyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := lobbyResponse{Enabled: h.enabled, Rooms: []room.LobbySummary{}}
	if h.enabled {
		resp.Rooms = h.registry.VisibleRooms()
	}
	writeJSON(w, http.StatusOK, resp)
}
