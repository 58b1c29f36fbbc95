package sfu

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/parlorhq/parlor/internal/domain"
	"github.com/parlorhq/parlor/internal/pubsub"
)

// Producer lifecycle events fanned out to individual voice peers.
const (
	EventNewProducer    = "voice:new-producer"
	EventProducerClosed = "voice:producer-closed"
)

// JoinResult is the reply to a voice join: what the router can route plus
// who is already producing.
type JoinResult struct {
	RTPCapabilities RTPCapabilities `json:"rtpCapabilities"`
	Producers       []ProducerInfo  `json:"existingProducers"`
}

// Handler is the voice control plane. It owns one router per room and
// publishes producer lifecycle events to each peer's user topic, which the
// websocket hub relays to the connection.
type Handler struct {
	engine *Engine
	ps     pubsub.PubSub

	mu      sync.RWMutex
	routers map[string]*Router

	logger *slog.Logger
}

// NewHandler creates the voice control plane on top of the worker pool.
func NewHandler(engine *Engine, ps pubsub.PubSub, logger *slog.Logger) *Handler {
	return &Handler{
		engine:  engine,
		ps:      ps,
		routers: make(map[string]*Router),
		logger:  logger.With("component", "sfu"),
	}
}

// Join adds a connection to a room's voice session, creating the router on
// first join.
func (h *Handler) Join(ctx context.Context, roomCode, connID string) (JoinResult, error) {
	h.mu.Lock()
	router, ok := h.routers[roomCode]
	if !ok {
		router = newRouter(roomCode, h.engine.PickWorker(), h.logger)
		h.routers[roomCode] = router
		h.logger.Info("voice session created", "room", roomCode, "worker", router.worker.ID)
	}
	h.mu.Unlock()

	router.addPeer(connID)
	return JoinResult{
		RTPCapabilities: router.Capabilities(),
		Producers:       router.producerList(connID),
	}, nil
}

// CreateTransport gathers a send or recv transport for the peer and returns
// its connect parameters.
func (h *Handler) CreateTransport(ctx context.Context, roomCode, connID, direction string) (TransportParams, error) {
	router, peer, err := h.peer(roomCode, connID)
	if err != nil {
		return TransportParams{}, err
	}

	t, err := newTransport(router.worker, direction)
	if err != nil {
		return TransportParams{}, err
	}
	peer.setTransport(t)

	params, err := t.Params()
	if err != nil {
		t.Close()
		return TransportParams{}, err
	}
	return params, nil
}

// ConnectTransport runs the ICE/DTLS handshakes with the client's remote
// parameters.
func (h *Handler) ConnectTransport(ctx context.Context, roomCode, connID, transportID string, dtls DTLSParameters, ice ICEParameters, candidates []ICECandidate) error {
	_, peer, err := h.peer(roomCode, connID)
	if err != nil {
		return err
	}

	t := peer.transport(transportID)
	if t == nil {
		return domain.ErrTransportNotFound
	}
	return t.Connect(dtls, ice, candidates)
}

// Produce starts the peer's audio producer and announces it to every other
// peer in the session.
func (h *Handler) Produce(ctx context.Context, roomCode, connID, transportID string, params RTPParameters) (string, error) {
	router, peer, err := h.peer(roomCode, connID)
	if err != nil {
		return "", err
	}
	if peer.currentProducer() != nil {
		return "", domain.ErrAlreadyProducing
	}

	producer, err := peer.produce(router.worker, transportID, params)
	if err != nil {
		return "", err
	}
	router.registerProducer(producer)

	h.fanOut(ctx, router, connID, EventNewProducer, ProducerInfo{
		ConnectionID: connID,
		ProducerID:   producer.ID,
	})

	h.logger.Info("producer started", "room", roomCode, "conn_id", connID, "producer_id", producer.ID)
	return producer.ID, nil
}

// Consume creates a paused consumer of the named producer on the peer's
// recv transport.
func (h *Handler) Consume(ctx context.Context, roomCode, connID, producerID string, caps RTPCapabilities) (ConsumerParams, error) {
	router, peer, err := h.peer(roomCode, connID)
	if err != nil {
		return ConsumerParams{}, err
	}

	producer := router.producer(producerID)
	if producer == nil {
		return ConsumerParams{}, domain.ErrProducerNotFound
	}
	if producer.OwnerID == connID {
		return ConsumerParams{}, domain.ErrCannotConsume
	}
	if !router.CanConsume(producerID, caps) {
		return ConsumerParams{}, domain.ErrCannotConsume
	}

	_, params, err := peer.consume(router.worker, producer)
	if err != nil {
		return ConsumerParams{}, err
	}
	return params, nil
}

// ResumeConsumer opens the forwarding gate for one consumer.
func (h *Handler) ResumeConsumer(ctx context.Context, roomCode, connID, consumerID string) error {
	_, peer, err := h.peer(roomCode, connID)
	if err != nil {
		return err
	}
	c := peer.consumer(consumerID)
	if c == nil {
		return domain.ErrConsumerNotFound
	}
	c.Resume()
	return nil
}

// PauseProducer mutes the peer's producer.
func (h *Handler) PauseProducer(ctx context.Context, roomCode, connID string) error {
	return h.setProducerPaused(roomCode, connID, true)
}

// ResumeProducer unmutes the peer's producer.
func (h *Handler) ResumeProducer(ctx context.Context, roomCode, connID string) error {
	return h.setProducerPaused(roomCode, connID, false)
}

func (h *Handler) setProducerPaused(roomCode, connID string, paused bool) error {
	_, peer, err := h.peer(roomCode, connID)
	if err != nil {
		return err
	}
	producer := peer.currentProducer()
	if producer == nil {
		return domain.ErrProducerNotFound
	}
	if paused {
		producer.Pause()
	} else {
		producer.Resume()
	}
	return nil
}

// Leave removes a connection from the room's voice session, closing its
// media and telling remaining peers which producer went away. Safe to call
// for connections that never joined voice.
func (h *Handler) Leave(ctx context.Context, roomCode, connID string) {
	h.mu.RLock()
	router, ok := h.routers[roomCode]
	h.mu.RUnlock()
	if !ok {
		return
	}

	producer, empty := router.removePeer(connID)
	if producer != nil {
		h.fanOut(ctx, router, connID, EventProducerClosed, ProducerInfo{
			ConnectionID: connID,
			ProducerID:   producer.ID,
		})
	}

	if empty {
		h.mu.Lock()
		if r, ok := h.routers[roomCode]; ok && r.PeerCount() == 0 {
			delete(h.routers, roomCode)
			h.logger.Info("voice session closed", "room", roomCode)
		}
		h.mu.Unlock()
	}
}

// CloseRoom tears down a room's voice session entirely.
func (h *Handler) CloseRoom(ctx context.Context, roomCode string) {
	h.mu.Lock()
	router, ok := h.routers[roomCode]
	delete(h.routers, roomCode)
	h.mu.Unlock()
	if !ok {
		return
	}
	for _, id := range router.peerIDs("") {
		router.removePeer(id)
	}
}

// InVoice reports whether the connection has an active voice peer.
func (h *Handler) InVoice(roomCode, connID string) bool {
	h.mu.RLock()
	router, ok := h.routers[roomCode]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return router.peer(connID) != nil
}

// PeerCount returns the number of voice peers across all rooms.
func (h *Handler) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, r := range h.routers {
		total += r.PeerCount()
	}
	return total
}

func (h *Handler) peer(roomCode, connID string) (*Router, *Peer, error) {
	h.mu.RLock()
	router, ok := h.routers[roomCode]
	h.mu.RUnlock()
	if !ok {
		return nil, nil, domain.ErrPeerNotFound
	}
	peer := router.peer(connID)
	if peer == nil {
		return nil, nil, domain.ErrPeerNotFound
	}
	return router, peer, nil
}

// fanOut publishes an event to every other peer's user topic.
func (h *Handler) fanOut(ctx context.Context, router *Router, except, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal fanout payload", "error", err, "type", eventType)
		return
	}
	for _, id := range router.peerIDs(except) {
		topic := pubsub.Topics.User(id)
		if err := h.ps.Publish(ctx, topic, &pubsub.Message{
			Topic:   topic,
			Type:    eventType,
			Payload: data,
		}); err != nil {
			h.logger.Error("failed to publish voice event", "error", err, "type", eventType, "conn_id", id)
		}
	}
}
