package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/parlorhq/parlor/internal/domain"
	"github.com/parlorhq/parlor/internal/metrics"
	"github.com/parlorhq/parlor/internal/room"
	"github.com/parlorhq/parlor/internal/websocket"
)

func (d *Dispatcher) handleQueueAdd(c *websocket.Client, r *room.Room, msg *websocket.Message) {
	var req queueAddRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.SendAck(msg.AckID, successAck{Success: false, Error: "invalid payload"})
		return
	}

	p, ok := r.Participant(c.ID())
	if !ok {
		c.SendAck(msg.AckID, successAck{Success: false, Error: domain.ErrNotInRoom.Error()})
		return
	}

	now := d.clock.Now()
	item, err := domain.NewQueueItem(req.URL, p.Name, now)
	if err != nil {
		c.SendAck(msg.AckID, successAck{Success: false, Error: err.Error()})
		return
	}
	if err := r.AddQueueItem(item); err != nil {
		c.SendAck(msg.AckID, successAck{Success: false, Error: err.Error()})
		return
	}

	system := domain.NewSystemMessage(p.Name+" queued "+item.Title, now)
	r.AppendChat(system)

	c.SendAck(msg.AckID, successAck{Success: true})
	d.hub.BroadcastToRoom(r.Code, websocket.EventQueueUpdate, queueUpdateEvent{Queue: r.QueueItems()})
	d.hub.BroadcastToRoom(r.Code, websocket.EventChatMessage, system)

	if item.VideoID != "" {
		go d.resolveQueueTitle(r, item.ID, item.VideoID)
	}
}

func (d *Dispatcher) handleQueueRemove(c *websocket.Client, r *room.Room, msg *websocket.Message) {
	var req queueItemRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.SendError("invalid payload")
		return
	}

	if err := r.RemoveQueueItem(req.ItemID); err != nil {
		c.SendError(err.Error())
		return
	}
	d.hub.BroadcastToRoom(r.Code, websocket.EventQueueUpdate, queueUpdateEvent{Queue: r.QueueItems()})
}

func (d *Dispatcher) handleQueueReorder(c *websocket.Client, r *room.Room, msg *websocket.Message) {
	var req queueReorderRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.SendError("invalid payload")
		return
	}

	if err := r.MoveQueueItem(req.ItemID, req.Index); err != nil {
		c.SendError(err.Error())
		return
	}
	d.hub.BroadcastToRoom(r.Code, websocket.EventQueueUpdate, queueUpdateEvent{Queue: r.QueueItems()})
}

func (d *Dispatcher) handleQueuePlay(c *websocket.Client, r *room.Room, msg *websocket.Message) {
	var req queueItemRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.SendError("invalid payload")
		return
	}

	item, err := r.TakeQueueItem(req.ItemID)
	if err != nil {
		c.SendError(err.Error())
		return
	}
	d.loadQueueItem(r, item)
}

func (d *Dispatcher) handleQueuePlayNext(c *websocket.Client, r *room.Room) {
	head, ok := r.PopQueue()
	if !ok {
		c.SendError(domain.ErrQueueEmpty.Error())
		return
	}
	d.loadQueueItem(r, head)
}

// resolveQueueTitle fills in a queued YouTube item's title once the oEmbed
// lookup returns, then emits a follow-up queue:update. Best effort: on
// failure the placeholder stays.
func (d *Dispatcher) resolveQueueTitle(r *room.Room, itemID, videoID string) {
	if d.titles == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	title, err := d.titles.Title(ctx, videoID)
	if err != nil {
		metrics.TitleLookupFailures.Inc()
		return
	}

	r.Lock()
	defer r.Unlock()
	if r.Closed() {
		return
	}
	if !r.SetQueueTitle(itemID, title) {
		// Item already played or was removed; update the lobby title when it
		// became the current video in the meantime.
		if r.Video.VideoID == videoID {
			r.VideoTitle = title
		}
		return
	}
	d.hub.BroadcastToRoom(r.Code, websocket.EventQueueUpdate, queueUpdateEvent{Queue: r.QueueItems()})
}
