package dispatch

import (
	"encoding/json"

	"github.com/parlorhq/parlor/internal/domain"
	"github.com/parlorhq/parlor/internal/room"
	"github.com/parlorhq/parlor/internal/websocket"
)

func (d *Dispatcher) handleScreenStart(c *websocket.Client, r *room.Room) {
	if r.ScreenSharerID != "" && r.ScreenSharerID != c.ID() {
		c.SendError(domain.ErrShareActive.Error())
		return
	}
	r.ScreenSharerID = c.ID()

	d.hub.BroadcastToRoomExcept(r.Code, c.ID(), websocket.EventScreenStarted, screenStartedEvent{SharerID: c.ID()})

	// Kick off the sharer's fanout: one peer connection per existing viewer.
	for _, p := range r.Participants() {
		if p.ID == c.ID() {
			continue
		}
		d.hub.SendToConn(c.ID(), websocket.EventScreenViewerJoined, viewerJoinedEvent{ViewerID: p.ID})
	}
}

func (d *Dispatcher) handleScreenStop(c *websocket.Client, r *room.Room) {
	if r.ScreenSharerID != c.ID() {
		c.SendError(domain.ErrNotSharing.Error())
		return
	}
	r.ScreenSharerID = ""
	d.hub.BroadcastToRoomExcept(r.Code, c.ID(), websocket.EventScreenStopped, struct{}{})
}

// handleScreenRelay forwards offer/answer/ICE payloads verbatim to their
// target, stamping the sender. The server never inspects the SDP or
// candidate contents.
func (d *Dispatcher) handleScreenRelay(c *websocket.Client, r *room.Room, msg *websocket.Message) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.SendError("invalid payload")
		return
	}

	var to string
	if raw, ok := payload["to"]; ok {
		if err := json.Unmarshal(raw, &to); err != nil {
			c.SendError("invalid payload")
			return
		}
	}
	if _, ok := r.Participant(to); !ok {
		c.SendError("unknown relay target")
		return
	}

	from, _ := json.Marshal(c.ID())
	payload["from"] = from
	d.hub.SendToConn(to, msg.Type, payload)
}
