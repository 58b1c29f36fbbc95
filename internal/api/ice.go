package api

import (
	"net/http"

	"github.com/parlorhq/parlor/internal/config"
)

// ICEServer mirrors the RTCIceServer dictionary shape clients feed straight
// into their peer connection config.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type iceServersResponse struct {
	ICEServers []ICEServer `json:"iceServers"`
}

// ICEServersHandler hands out the STUN/TURN list from config.
type ICEServersHandler struct {
	cfg *config.Config
}

// NewICEServersHandler creates the /ice-servers handler.
func NewICEServersHandler(cfg *config.Config) *ICEServersHandler {
	return &ICEServersHandler{cfg: cfg}
}

func (h *ICEServersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	servers := make([]ICEServer, 0, 2)
	if len(h.cfg.STUNURLs) > 0 {
		servers = append(servers, ICEServer{URLs: h.cfg.STUNURLs})
	}
	if h.cfg.TURNURL != "" {
		servers = append(servers, ICEServer{
			URLs:       []string{h.cfg.TURNURL},
			Username:   h.cfg.TURNUsername,
			Credential: h.cfg.TURNCredential,
		})
	}
	writeJSON(w, http.StatusOK, iceServersResponse{ICEServers: servers})
}
