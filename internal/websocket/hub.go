package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/parlorhq/parlor/internal/pubsub"
)

// EventHandler processes decoded envelopes from connected clients. The hub
// owns connection lifecycle; room and media semantics live behind this
// interface.
type EventHandler interface {
	HandleEvent(ctx context.Context, client *Client, msg *Message)
	HandleDisconnect(ctx context.Context, client *Client)
}

// Hub maintains the set of active clients and fans events out to them
type Hub struct {
	// Registered clients by connection ID
	clients map[string]*Client

	// Room subscriptions: room code -> set of clients
	rooms map[string]map[*Client]bool

	// Channel for registering clients
	register chan *Client

	// Channel for unregistering clients
	unregister chan *Client

	mu sync.RWMutex

	handler EventHandler
	ps      pubsub.PubSub
	logger  *slog.Logger
}

// NewHub creates a new Hub
func NewHub(ps pubsub.PubSub, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ps:         ps,
		logger:     logger,
	}
}

// SetEventHandler wires the event handler. Must be called before Run.
func (h *Hub) SetEventHandler(handler EventHandler) {
	h.handler = handler
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.handleRegister(ctx, client)
		case client := <-h.unregister:
			h.handleUnregister(ctx, client)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) handleRegister(ctx context.Context, client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	// Relay connection-targeted pubsub events (voice producer notifications)
	// straight onto the client's send queue.
	sub, err := h.ps.Subscribe(ctx, pubsub.Topics.User(client.id), func(ctx context.Context, msg *pubsub.Message) {
		_ = client.Send(&Message{Type: msg.Type, Payload: msg.Payload})
	})
	if err != nil {
		h.logger.Error("failed to subscribe user topic", "error", err, "conn_id", client.id)
	} else {
		client.userSub = sub
	}

	h.logger.Debug("client connected", "conn_id", client.id)
}

func (h *Hub) handleUnregister(ctx context.Context, client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.id)

	for code, room := range h.rooms {
		if room[client] {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, code)
			}
		}
	}
	h.mu.Unlock()

	if client.userSub != nil {
		_ = client.userSub.Unsubscribe()
	}

	// Room and voice teardown run before the send channel closes so that
	// departure broadcasts still reach everyone else.
	if h.handler != nil {
		h.handler.HandleDisconnect(ctx, client)
	}

	close(client.send)
	if client.cancel != nil {
		client.cancel()
	}
	h.logger.Debug("client disconnected", "conn_id", client.id)
}

// HandleMessage forwards an incoming envelope to the event handler
func (h *Hub) HandleMessage(ctx context.Context, client *Client, msg *Message) {
	if h.handler == nil {
		client.SendError("server not ready")
		return
	}
	h.handler.HandleEvent(ctx, client, msg)
}

// JoinGroup subscribes a client connection to room broadcasts
func (h *Hub) JoinGroup(code string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[code] == nil {
		h.rooms[code] = make(map[*Client]bool)
	}
	h.rooms[code][client] = true
}

// LeaveGroup removes a client connection from room broadcasts
func (h *Hub) LeaveGroup(code string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[code]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, code)
		}
	}
}

// Client returns the client for a connection ID, or nil
func (h *Hub) Client(connID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[connID]
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastToRoom sends an event to every client in a room
func (h *Hub) BroadcastToRoom(code string, eventType string, payload interface{}) {
	h.broadcast(code, nil, eventType, payload)
}

// BroadcastToRoomExcept sends to all room members except the named connection
func (h *Hub) BroadcastToRoomExcept(code string, exceptConnID string, eventType string, payload interface{}) {
	h.mu.RLock()
	except := h.clients[exceptConnID]
	h.mu.RUnlock()
	h.broadcast(code, except, eventType, payload)
}

func (h *Hub) broadcast(code string, except *Client, eventType string, payload interface{}) {
	h.mu.RLock()
	room, ok := h.rooms[code]
	if !ok {
		h.mu.RUnlock()
		return
	}

	// Copy clients to avoid holding lock during send
	clients := make([]*Client, 0, len(room))
	for client := range room {
		if client != except {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	msg, err := NewMessage(eventType, payload)
	if err != nil {
		h.logger.Error("failed to create broadcast message", "error", err, "type", eventType)
		return
	}

	for _, client := range clients {
		_ = client.Send(msg)
	}
}

// SendToConn sends an event to a single connection. Returns false if the
// connection is not registered.
func (h *Hub) SendToConn(connID string, eventType string, payload interface{}) bool {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	msg, err := NewMessage(eventType, payload)
	if err != nil {
		h.logger.Error("failed to create message", "error", err, "type", eventType)
		return false
	}
	_ = client.Send(msg)
	return true
}

// SendRaw sends a pre-built envelope to a single connection
func (h *Hub) SendRaw(connID string, msg *Message) bool {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	_ = client.Send(msg)
	return true
}

// PublishToUser routes a connection-targeted event through pubsub so it
// reaches the connection regardless of which instance holds it.
func (h *Hub) PublishToUser(ctx context.Context, connID string, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return h.ps.Publish(ctx, pubsub.Topics.User(connID), &pubsub.Message{
		Topic:   pubsub.Topics.User(connID),
		Type:    eventType,
		Payload: data,
	})
}
