package sfu

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
)

// Producer is one inbound audio stream. The read loop pulls RTP off the
// receiver and fans it out to every unpaused consumer.
type Producer struct {
	ID      string
	OwnerID string

	receiver *webrtc.RTPReceiver
	paused   atomic.Bool
	closed   atomic.Bool

	mu        sync.RWMutex
	consumers map[string]*Consumer

	logger *slog.Logger
}

// Consumer is one outbound leg of a producer. It starts paused and forwards
// nothing until the client resumes it.
type Consumer struct {
	ID           string
	ProducerID   string
	OwnerID      string
	track        *webrtc.TrackLocalStaticRTP
	sender       *webrtc.RTPSender
	paused       atomic.Bool
	closed       atomic.Bool
	closeStopRTP chan struct{}
}

// Pause stops forwarding to this consumer.
func (c *Consumer) Pause() { c.paused.Store(true) }

// Resume starts forwarding to this consumer.
func (c *Consumer) Resume() { c.paused.Store(false) }

// Paused reports the forwarding gate.
func (c *Consumer) Paused() bool { return c.paused.Load() }

// close is idempotent. A consumer is reachable from both its owner's map and
// its producer's map, so teardown can arrive from either side.
func (c *Consumer) close() {
	if c.closed.Swap(true) {
		return
	}
	close(c.closeStopRTP)
	_ = c.sender.Stop()
}

// Pause mutes the producer for everyone without tearing it down.
func (p *Producer) Pause() { p.paused.Store(true) }

// Resume unmutes the producer.
func (p *Producer) Resume() { p.paused.Store(false) }

// Paused reports the mute state.
func (p *Producer) Paused() bool { return p.paused.Load() }

func (p *Producer) addConsumer(c *Consumer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consumers[c.ID] = c
}

func (p *Producer) removeConsumer(id string) *Consumer {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.consumers[id]
	delete(p.consumers, id)
	return c
}

// readLoop forwards RTP until the receiver stops. WriteRTP rewrites the
// header SSRC per consumer binding, so each consumer needs its own packet
// copy.
func (p *Producer) readLoop() {
	track := p.receiver.Track()
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) && !p.closed.Load() {
				p.logger.Warn("producer read loop ended", "producer_id", p.ID, "error", err)
			}
			return
		}

		if p.paused.Load() {
			continue
		}

		p.mu.RLock()
		targets := make([]*Consumer, 0, len(p.consumers))
		for _, c := range p.consumers {
			if !c.Paused() {
				targets = append(targets, c)
			}
		}
		p.mu.RUnlock()

		for _, c := range targets {
			packetCopy := *pkt
			if err := c.track.WriteRTP(&packetCopy); err != nil && !errors.Is(err, io.ErrClosedPipe) {
				p.logger.Warn("failed to forward rtp", "consumer_id", c.ID, "error", err)
			}
		}
	}
}

func (p *Producer) close() {
	if p.closed.Swap(true) {
		return
	}
	p.mu.Lock()
	consumers := make([]*Consumer, 0, len(p.consumers))
	for _, c := range p.consumers {
		consumers = append(consumers, c)
	}
	p.consumers = make(map[string]*Consumer)
	p.mu.Unlock()

	for _, c := range consumers {
		c.close()
	}
	_ = p.receiver.Stop()
}

// Peer is one connection's presence in a room's voice session: up to two
// transports, at most one producer, and any number of consumers.
type Peer struct {
	ConnID string

	mu            sync.RWMutex
	sendTransport *Transport
	recvTransport *Transport
	producer      *Producer
	consumers     map[string]*Consumer

	logger *slog.Logger
}

func newPeer(connID string, logger *slog.Logger) *Peer {
	return &Peer{
		ConnID:    connID,
		consumers: make(map[string]*Consumer),
		logger:    logger.With("conn_id", connID),
	}
}

// setTransport installs a transport for its direction, closing any previous
// one so a retried create does not leak the old gatherer and mux bindings.
func (p *Peer) setTransport(t *Transport) {
	p.mu.Lock()
	var old *Transport
	if t.Direction == DirectionSend {
		old = p.sendTransport
		p.sendTransport = t
	} else {
		old = p.recvTransport
		p.recvTransport = t
	}
	p.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

func (p *Peer) transport(id string) *Transport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.sendTransport != nil && p.sendTransport.ID == id {
		return p.sendTransport
	}
	if p.recvTransport != nil && p.recvTransport.ID == id {
		return p.recvTransport
	}
	return nil
}

// produce wires an RTPReceiver to the peer's send transport and starts the
// forwarding loop. One producer per peer.
func (p *Peer) produce(w *Worker, transportID string, params RTPParameters) (*Producer, error) {
	var t *Transport
	if transportID == "" {
		// Produce requests may omit the transport ID; there is only ever
		// one send transport.
		p.mu.RLock()
		t = p.sendTransport
		p.mu.RUnlock()
	} else {
		t = p.transport(transportID)
	}
	if t == nil {
		return nil, fmt.Errorf("no send transport for produce")
	}
	if t.Direction != DirectionSend {
		return nil, fmt.Errorf("transport %s is not a send transport", transportID)
	}
	if len(params.Encodings) == 0 {
		return nil, fmt.Errorf("produce request without encodings")
	}

	p.mu.Lock()
	if p.producer != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("peer already producing")
	}
	p.mu.Unlock()

	receiver, err := w.api.NewRTPReceiver(webrtc.RTPCodecTypeAudio, t.dtls)
	if err != nil {
		return nil, fmt.Errorf("new receiver: %w", err)
	}

	recvParams := webrtc.RTPReceiveParameters{
		Encodings: []webrtc.RTPDecodingParameters{{
			RTPCodingParameters: webrtc.RTPCodingParameters{
				SSRC: webrtc.SSRC(params.Encodings[0].SSRC),
			},
		}},
	}
	if err := receiver.Receive(recvParams); err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}

	producer := &Producer{
		ID:        uuid.NewString(),
		OwnerID:   p.ConnID,
		receiver:  receiver,
		consumers: make(map[string]*Consumer),
		logger:    p.logger,
	}

	p.mu.Lock()
	p.producer = producer
	p.mu.Unlock()

	go producer.readLoop()
	return producer, nil
}

// consume attaches an outbound track for the given producer on the peer's
// recv transport. The consumer starts paused.
func (p *Peer) consume(w *Worker, producer *Producer) (*Consumer, ConsumerParams, error) {
	p.mu.RLock()
	t := p.recvTransport
	p.mu.RUnlock()
	if t == nil {
		return nil, ConsumerParams{}, fmt.Errorf("peer has no recv transport")
	}

	track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	}, "audio", "voice-"+producer.OwnerID)
	if err != nil {
		return nil, ConsumerParams{}, fmt.Errorf("new local track: %w", err)
	}

	sender, err := w.api.NewRTPSender(track, t.dtls)
	if err != nil {
		return nil, ConsumerParams{}, fmt.Errorf("new sender: %w", err)
	}

	sendParams := sender.GetParameters()
	if err := sender.Send(sendParams); err != nil {
		return nil, ConsumerParams{}, fmt.Errorf("send: %w", err)
	}

	consumer := &Consumer{
		ID:           uuid.NewString(),
		ProducerID:   producer.ID,
		OwnerID:      p.ConnID,
		track:        track,
		sender:       sender,
		closeStopRTP: make(chan struct{}),
	}
	consumer.paused.Store(true)

	go drainRTCP(sender, consumer.closeStopRTP)

	p.mu.Lock()
	p.consumers[consumer.ID] = consumer
	p.mu.Unlock()
	producer.addConsumer(consumer)

	params := ConsumerParams{
		ConsumerID:    consumer.ID,
		ProducerID:    producer.ID,
		ConnectionID:  producer.OwnerID,
		Kind:          "audio",
		RTPParameters: sendParametersToWire(sendParams),
	}
	return consumer, params, nil
}

// drainRTCP keeps the sender's feedback path empty. Audio needs no PLI
// handling, but receiver reports still have to be read off the wire.
func drainRTCP(sender *webrtc.RTPSender, stop chan struct{}) {
	buf := make([]byte, 1500)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, _, err := sender.Read(buf)
		if err != nil {
			return
		}
		if _, err := rtcp.Unmarshal(buf[:n]); err != nil {
			continue
		}
	}
}

func (p *Peer) consumer(id string) *Consumer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.consumers[id]
}

func (p *Peer) currentProducer() *Producer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.producer
}

// dropConsumersOf closes this peer's consumers of the given producer.
func (p *Peer) dropConsumersOf(producerID string) {
	p.mu.Lock()
	var dropped []*Consumer
	for id, c := range p.consumers {
		if c.ProducerID == producerID {
			dropped = append(dropped, c)
			delete(p.consumers, id)
		}
	}
	p.mu.Unlock()

	for _, c := range dropped {
		c.close()
	}
}

// close tears the peer down: consumers first, then the producer, then both
// transports. It returns the producer and the closed consumers so the caller
// can deregister them from the routing tables.
func (p *Peer) close() (*Producer, []*Consumer) {
	p.mu.Lock()
	consumers := make([]*Consumer, 0, len(p.consumers))
	for _, c := range p.consumers {
		consumers = append(consumers, c)
	}
	p.consumers = make(map[string]*Consumer)
	producer := p.producer
	p.producer = nil
	sendT := p.sendTransport
	recvT := p.recvTransport
	p.sendTransport = nil
	p.recvTransport = nil
	p.mu.Unlock()

	for _, c := range consumers {
		c.close()
	}
	if producer != nil {
		producer.close()
	}
	if sendT != nil {
		sendT.Close()
	}
	if recvT != nil {
		recvT.Close()
	}
	return producer, consumers
}
