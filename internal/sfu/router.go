package sfu

import (
	"log/slog"
	"strings"
	"sync"
)

// Router is one room's voice session, pinned to a single worker so all of
// the room's media flows through one port pair.
type Router struct {
	RoomCode string
	worker   *Worker

	mu        sync.RWMutex
	peers     map[string]*Peer
	producers map[string]*Producer

	logger *slog.Logger
}

func newRouter(code string, worker *Worker, logger *slog.Logger) *Router {
	return &Router{
		RoomCode:  code,
		worker:    worker,
		peers:     make(map[string]*Peer),
		producers: make(map[string]*Producer),
		logger:    logger.With("room", code, "worker", worker.ID),
	}
}

// Capabilities advertises the codecs this router forwards. Voice is Opus
// only.
func (r *Router) Capabilities() RTPCapabilities {
	return RTPCapabilities{
		Codecs: []RTPCodec{{
			MimeType:    "audio/opus",
			PayloadType: opusPayloadType,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		}},
	}
}

// CanConsume reports whether a client with the given capabilities can
// consume the named producer.
func (r *Router) CanConsume(producerID string, caps RTPCapabilities) bool {
	r.mu.RLock()
	_, ok := r.producers[producerID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	for _, c := range caps.Codecs {
		if strings.EqualFold(c.MimeType, "audio/opus") {
			return true
		}
	}
	return false
}

func (r *Router) addPeer(connID string) *Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.peers[connID]; ok {
		return existing
	}
	peer := newPeer(connID, r.logger)
	r.peers[connID] = peer
	return peer
}

func (r *Router) peer(connID string) *Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peers[connID]
}

// peerIDs returns the connection IDs of all peers except the given one.
func (r *Router) peerIDs(except string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		if id != except {
			ids = append(ids, id)
		}
	}
	return ids
}

// producerList snapshots active producers, excluding one owner.
func (r *Router) producerList(exceptOwner string) []ProducerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProducerInfo, 0, len(r.producers))
	for _, p := range r.producers {
		if p.OwnerID == exceptOwner {
			continue
		}
		out = append(out, ProducerInfo{ConnectionID: p.OwnerID, ProducerID: p.ID})
	}
	return out
}

func (r *Router) registerProducer(p *Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producers[p.ID] = p
}

func (r *Router) producer(id string) *Producer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.producers[id]
}

// removePeer closes and detaches a peer. It returns the peer's producer (if
// it had one) so the caller can notify consumers, and whether the router is
// now empty.
func (r *Router) removePeer(connID string) (*Producer, bool) {
	r.mu.Lock()
	peer, ok := r.peers[connID]
	if !ok {
		empty := len(r.peers) == 0
		r.mu.Unlock()
		return nil, empty
	}
	delete(r.peers, connID)
	empty := len(r.peers) == 0
	r.mu.Unlock()

	producer, consumers := peer.close()

	// The departed peer's consumers are still registered on the producers
	// they were attached to; deregister them so a later producer close does
	// not touch them again.
	for _, c := range consumers {
		r.mu.RLock()
		owner := r.producers[c.ProducerID]
		r.mu.RUnlock()
		if owner != nil {
			owner.removeConsumer(c.ID)
		}
	}

	if producer != nil {
		r.mu.Lock()
		delete(r.producers, producer.ID)
		r.mu.Unlock()

		// Other peers may still hold consumers of the departed producer.
		r.mu.RLock()
		others := make([]*Peer, 0, len(r.peers))
		for _, p := range r.peers {
			others = append(others, p)
		}
		r.mu.RUnlock()
		for _, p := range others {
			p.dropConsumersOf(producer.ID)
		}
	}
	return producer, empty
}

// PeerCount returns the number of peers in the session.
func (r *Router) PeerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
