package dispatch

import (
	"encoding/json"

	"github.com/parlorhq/parlor/internal/domain"
	"github.com/parlorhq/parlor/internal/room"
	"github.com/parlorhq/parlor/internal/websocket"
)

func (d *Dispatcher) handleChatMessage(c *websocket.Client, r *room.Room, msg *websocket.Message) {
	var req chatMessageRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.SendError("invalid payload")
		return
	}

	p, ok := r.Participant(c.ID())
	if !ok {
		c.SendError(domain.ErrNotInRoom.Error())
		return
	}

	chatMsg, err := domain.NewChatMessage(p, req.Text, d.clock.Now())
	if err != nil {
		c.SendError(err.Error())
		return
	}

	r.AppendChat(chatMsg)
	d.hub.BroadcastToRoom(r.Code, websocket.EventChatMessage, chatMsg)
}

func (d *Dispatcher) handleChatDelete(c *websocket.Client, r *room.Room, msg *websocket.Message) {
	var req chatDeleteRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.SendError("invalid payload")
		return
	}

	if err := r.DeleteChat(req.MessageID, c.ID()); err != nil {
		c.SendError(err.Error())
		return
	}

	d.hub.BroadcastToRoom(r.Code, websocket.EventChatDelete, chatDeleteEvent{MessageID: req.MessageID})
}
