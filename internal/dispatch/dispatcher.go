// Package dispatch owns the per-room serialization point. Every inbound
// event for a room runs under that room's lock, and its broadcasts are
// emitted before the lock is released, so outbound messages within one room
// are totally ordered while rooms progress independently.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/parlorhq/parlor/internal/domain"
	"github.com/parlorhq/parlor/internal/metrics"
	"github.com/parlorhq/parlor/internal/room"
	"github.com/parlorhq/parlor/internal/sfu"
	"github.com/parlorhq/parlor/internal/websocket"
)

// TitleLookup resolves a display title for a YouTube video ID. Lookups are
// best-effort with their own deadline.
type TitleLookup interface {
	Title(ctx context.Context, videoID string) (string, error)
}

// Dispatcher routes websocket events to their room handlers.
type Dispatcher struct {
	registry *room.Registry
	hub      *websocket.Hub
	voice    *sfu.Handler
	titles   TitleLookup
	clock    domain.Clock
	logger   *slog.Logger
}

// NewDispatcher wires the dispatcher. titles may be nil; queue items then
// keep their placeholder titles.
func NewDispatcher(registry *room.Registry, hub *websocket.Hub, voice *sfu.Handler, titles TitleLookup, clock domain.Clock, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		hub:      hub,
		voice:    voice,
		titles:   titles,
		clock:    clock,
		logger:   logger.With("component", "dispatch"),
	}
}

// HandleEvent implements websocket.EventHandler.
func (d *Dispatcher) HandleEvent(ctx context.Context, c *websocket.Client, msg *websocket.Message) {
	metrics.EventsTotal.WithLabelValues(msg.Type).Inc()

	switch msg.Type {
	case websocket.EventRoomCreate:
		d.handleRoomCreate(ctx, c, msg)
		return
	case websocket.EventRoomJoin:
		d.handleRoomJoin(ctx, c, msg)
		return
	}

	r, ok := d.registry.RoomFor(c.ID())
	if !ok {
		c.SendError("not in a room")
		return
	}

	r.Lock()
	defer r.Unlock()
	if r.Closed() {
		c.SendError("room no longer exists")
		return
	}
	d.dispatchRoomEvent(ctx, c, r, msg)
}

// dispatchRoomEvent runs under the room lock.
func (d *Dispatcher) dispatchRoomEvent(ctx context.Context, c *websocket.Client, r *room.Room, msg *websocket.Message) {
	switch msg.Type {
	case websocket.EventRoomLeave:
		d.leaveLocked(ctx, c, r)

	case websocket.EventRoomSetHidden:
		d.handleSetHidden(c, r, msg)

	case websocket.EventVideoLoad:
		d.handleVideoLoad(c, r, msg)
	case websocket.EventVideoPlay:
		d.handleVideoPlay(r)
	case websocket.EventVideoPause:
		d.handleVideoPause(r, msg)
	case websocket.EventVideoSeek:
		d.handleVideoSeek(r, msg)
	case websocket.EventVideoRate:
		d.handleVideoRate(c, r, msg)
	case websocket.EventVideoEnded:
		d.handleVideoEnded(r)

	case websocket.EventQueueAdd:
		d.handleQueueAdd(c, r, msg)
	case websocket.EventQueueRemove:
		d.handleQueueRemove(c, r, msg)
	case websocket.EventQueueReorder:
		d.handleQueueReorder(c, r, msg)
	case websocket.EventQueuePlay:
		d.handleQueuePlay(c, r, msg)
	case websocket.EventQueuePlayNext:
		d.handleQueuePlayNext(c, r)

	case websocket.EventChatMessage:
		d.handleChatMessage(c, r, msg)
	case websocket.EventChatDelete:
		d.handleChatDelete(c, r, msg)

	case websocket.EventVoiceJoin:
		d.handleVoiceJoin(ctx, c, r, msg)
	case websocket.EventVoiceLeave:
		d.handleVoiceLeave(ctx, c, r)
	case websocket.EventVoiceCreateSendTransport:
		d.handleCreateTransport(ctx, c, r, msg, sfu.DirectionSend)
	case websocket.EventVoiceCreateRecvTransport:
		d.handleCreateTransport(ctx, c, r, msg, sfu.DirectionRecv)
	case websocket.EventVoiceConnectTransport:
		d.handleConnectTransport(ctx, c, r, msg)
	case websocket.EventVoiceProduce:
		d.handleProduce(ctx, c, r, msg)
	case websocket.EventVoiceConsume:
		d.handleConsume(ctx, c, r, msg)
	case websocket.EventVoiceResumeConsumer:
		d.handleResumeConsumer(ctx, c, r, msg)
	case websocket.EventVoicePauseProducer:
		d.handlePauseProducer(ctx, c, r, true)
	case websocket.EventVoiceResumeProducer:
		d.handlePauseProducer(ctx, c, r, false)

	case websocket.EventScreenStart:
		d.handleScreenStart(c, r)
	case websocket.EventScreenStop:
		d.handleScreenStop(c, r)
	case websocket.EventScreenOffer, websocket.EventScreenAnswer, websocket.EventScreenICECandidate:
		d.handleScreenRelay(c, r, msg)

	default:
		d.logger.Warn("dropping unknown event", "type", msg.Type, "conn_id", c.ID())
	}
}

// HandleDisconnect implements websocket.EventHandler. It runs the same leave
// sequence as an explicit room:leave.
func (d *Dispatcher) HandleDisconnect(ctx context.Context, c *websocket.Client) {
	r, ok := d.registry.RoomFor(c.ID())
	if !ok {
		return
	}
	r.Lock()
	defer r.Unlock()
	if r.Closed() {
		d.registry.Unbind(c.ID())
		return
	}
	d.leaveLocked(ctx, c, r)
}

// leaveCurrent runs the departure sequence for whatever room the connection
// is bound to, if any. Creating or joining a room while still in another one
// must not leave a ghost participant behind.
func (d *Dispatcher) leaveCurrent(ctx context.Context, c *websocket.Client) {
	r, ok := d.registry.RoomFor(c.ID())
	if !ok {
		return
	}
	r.Lock()
	defer r.Unlock()
	if r.Closed() {
		d.registry.Unbind(c.ID())
		return
	}
	d.leaveLocked(ctx, c, r)
}

func (d *Dispatcher) handleRoomCreate(ctx context.Context, c *websocket.Client, msg *websocket.Message) {
	var req roomCreateRequest
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			c.SendError("invalid payload")
			return
		}
	}

	d.leaveCurrent(ctx, c)

	r, p, err := d.registry.CreateRoom(c.ID(), req.UserName)
	if err != nil {
		d.logger.Error("room create failed", "error", err)
		c.SendError("could not create room")
		return
	}

	c.SetRoom(r.Code)
	d.hub.JoinGroup(r.Code, c)

	r.Lock()
	r.AppendChat(domain.NewSystemMessage(p.Name+" created the room", d.clock.Now()))
	state := r.Snapshot(d.clock.Now())
	r.Unlock()

	c.SendAck(msg.AckID, roomCreateAck{RoomID: r.Code, UserID: p.ID})
	d.hub.SendToConn(c.ID(), websocket.EventRoomState, state)

	metrics.RoomsActive.Set(float64(d.registry.RoomCount()))
	metrics.RoomMembers.Set(float64(d.registry.UserCount()))
}

func (d *Dispatcher) handleRoomJoin(ctx context.Context, c *websocket.Client, msg *websocket.Message) {
	var req roomJoinRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.SendAck(msg.AckID, roomJoinAck{Success: false, Error: "invalid payload"})
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.RoomID))
	if !room.ValidCode(code) {
		c.SendAck(msg.AckID, roomJoinAck{Success: false, Error: domain.ErrRoomNotFound.Error()})
		return
	}

	r, ok := d.registry.Get(code)
	if !ok {
		c.SendAck(msg.AckID, roomJoinAck{Success: false, Error: domain.ErrRoomNotFound.Error()})
		return
	}

	// The old room's lock is released before the new one is taken, so two
	// clients hopping in opposite directions cannot deadlock.
	d.leaveCurrent(ctx, c)

	r.Lock()
	defer r.Unlock()
	if r.Closed() {
		c.SendAck(msg.AckID, roomJoinAck{Success: false, Error: domain.ErrRoomNotFound.Error()})
		return
	}

	now := d.clock.Now()
	p := domain.NewParticipant(c.ID(), req.UserName, code, now)
	r.AddParticipant(p)
	d.registry.Bind(c.ID(), code)
	c.SetRoom(code)
	d.hub.JoinGroup(code, c)

	system := domain.NewSystemMessage(p.Name+" joined", now)
	r.AppendChat(system)

	c.SendAck(msg.AckID, roomJoinAck{Success: true, UserID: p.ID})
	d.hub.SendToConn(c.ID(), websocket.EventRoomState, r.Snapshot(now))
	d.hub.BroadcastToRoomExcept(code, c.ID(), websocket.EventRoomUserJoined, userJoinedEvent{
		ID:     p.ID,
		Name:   p.Name,
		Avatar: p.Avatar,
	})
	d.hub.BroadcastToRoom(code, websocket.EventChatMessage, system)

	// A new participant is a fresh viewer for any share in progress.
	if r.ScreenSharerID != "" && r.ScreenSharerID != c.ID() {
		d.hub.SendToConn(r.ScreenSharerID, websocket.EventScreenViewerJoined, viewerJoinedEvent{ViewerID: c.ID()})
	}

	metrics.RoomMembers.Set(float64(d.registry.UserCount()))
	d.logger.Info("participant joined", "room", code, "conn_id", c.ID(), "name", p.Name)
}

// leaveLocked runs the departure sequence under the room lock: voice
// teardown first so producer-closed fanout precedes the membership change,
// then host transfer and broadcasts. The last departure destroys the room.
func (d *Dispatcher) leaveLocked(ctx context.Context, c *websocket.Client, r *room.Room) {
	connID := c.ID()
	code := r.Code

	if r.LeaveVoice(connID) {
		d.voice.Leave(ctx, code, connID)
		d.hub.BroadcastToRoomExcept(code, connID, websocket.EventVoiceUserLeft, voiceMemberEvent{ID: connID})
		metrics.VoicePeers.Set(float64(d.voice.PeerCount()))
	}

	wasSharer := r.ScreenSharerID == connID

	removed, hostChanged := r.RemoveParticipant(connID)
	d.registry.Unbind(connID)
	d.hub.LeaveGroup(code, c)
	c.SetRoom("")
	if removed == nil {
		return
	}

	if r.Closed() {
		d.voice.CloseRoom(ctx, code)
		d.registry.Remove(code)
		metrics.RoomsActive.Set(float64(d.registry.RoomCount()))
		metrics.RoomMembers.Set(float64(d.registry.UserCount()))
		return
	}

	if wasSharer {
		d.hub.BroadcastToRoom(code, websocket.EventScreenStopped, struct{}{})
	}

	now := d.clock.Now()
	system := domain.NewSystemMessage(removed.Name+" left", now)
	r.AppendChat(system)

	d.hub.BroadcastToRoom(code, websocket.EventRoomUserLeft, userLeftEvent{ID: removed.ID, Name: removed.Name})
	d.hub.BroadcastToRoom(code, websocket.EventChatMessage, system)
	if hostChanged {
		d.hub.BroadcastToRoom(code, websocket.EventRoomHostChanged, hostChangedEvent{HostID: r.HostID})
	}

	metrics.RoomMembers.Set(float64(d.registry.UserCount()))
	d.logger.Info("participant left", "room", code, "conn_id", connID)
}

func (d *Dispatcher) handleSetHidden(c *websocket.Client, r *room.Room, msg *websocket.Message) {
	if r.HostID != c.ID() {
		c.SendError(domain.ErrNotHost.Error())
		return
	}
	var req setHiddenRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.SendError("invalid payload")
		return
	}
	if r.Hidden == req.Hidden {
		return
	}
	r.Hidden = req.Hidden
	d.hub.BroadcastToRoom(r.Code, websocket.EventRoomSetHidden, hiddenChangedEvent{Hidden: r.Hidden})
}
