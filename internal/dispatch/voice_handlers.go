package dispatch

import (
	"context"
	"encoding/json"

	"github.com/parlorhq/parlor/internal/metrics"
	"github.com/parlorhq/parlor/internal/room"
	"github.com/parlorhq/parlor/internal/websocket"
)

func (d *Dispatcher) handleVoiceJoin(ctx context.Context, c *websocket.Client, r *room.Room, msg *websocket.Message) {
	res, err := d.voice.Join(ctx, r.Code, c.ID())
	if err != nil {
		c.SendError(err.Error())
		return
	}

	alreadyIn := r.InVoice(c.ID())
	r.JoinVoice(c.ID())

	c.SendAck(msg.AckID, res)
	if !alreadyIn {
		d.hub.BroadcastToRoomExcept(r.Code, c.ID(), websocket.EventVoiceUserJoined, voiceMemberEvent{ID: c.ID()})
	}
	metrics.VoicePeers.Set(float64(d.voice.PeerCount()))
}

func (d *Dispatcher) handleVoiceLeave(ctx context.Context, c *websocket.Client, r *room.Room) {
	if !r.LeaveVoice(c.ID()) {
		return
	}
	d.voice.Leave(ctx, r.Code, c.ID())
	d.hub.BroadcastToRoomExcept(r.Code, c.ID(), websocket.EventVoiceUserLeft, voiceMemberEvent{ID: c.ID()})
	metrics.VoicePeers.Set(float64(d.voice.PeerCount()))
}

func (d *Dispatcher) handleCreateTransport(ctx context.Context, c *websocket.Client, r *room.Room, msg *websocket.Message, direction string) {
	params, err := d.voice.CreateTransport(ctx, r.Code, c.ID(), direction)
	if err != nil {
		c.SendError(err.Error())
		return
	}
	c.SendAck(msg.AckID, params)
}

func (d *Dispatcher) handleConnectTransport(ctx context.Context, c *websocket.Client, r *room.Room, msg *websocket.Message) {
	var req connectTransportRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.SendAck(msg.AckID, connectedAck{Connected: false})
		return
	}

	err := d.voice.ConnectTransport(ctx, r.Code, c.ID(), req.TransportID, req.DTLSParameters, req.ICEParameters, req.ICECandidates)
	if err != nil {
		c.SendError(err.Error())
		c.SendAck(msg.AckID, connectedAck{Connected: false})
		return
	}
	c.SendAck(msg.AckID, connectedAck{Connected: true})
}

func (d *Dispatcher) handleProduce(ctx context.Context, c *websocket.Client, r *room.Room, msg *websocket.Message) {
	var req produceRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.SendError("invalid payload")
		return
	}
	if req.Kind != "" && req.Kind != "audio" {
		c.SendError("only audio producers are supported")
		return
	}

	producerID, err := d.voice.Produce(ctx, r.Code, c.ID(), req.TransportID, req.RTPParameters)
	if err != nil {
		c.SendError(err.Error())
		return
	}
	c.SendAck(msg.AckID, producedAck{ProducerID: producerID})
}

func (d *Dispatcher) handleConsume(ctx context.Context, c *websocket.Client, r *room.Room, msg *websocket.Message) {
	var req consumeRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.SendError("invalid payload")
		return
	}

	params, err := d.voice.Consume(ctx, r.Code, c.ID(), req.ProducerID, req.RTPCapabilities)
	if err != nil {
		c.SendError(err.Error())
		return
	}
	c.SendAck(msg.AckID, params)
}

func (d *Dispatcher) handleResumeConsumer(ctx context.Context, c *websocket.Client, r *room.Room, msg *websocket.Message) {
	var req resumeConsumerRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.SendAck(msg.AckID, resumedAck{Resumed: false})
		return
	}

	if err := d.voice.ResumeConsumer(ctx, r.Code, c.ID(), req.ConsumerID); err != nil {
		c.SendError(err.Error())
		c.SendAck(msg.AckID, resumedAck{Resumed: false})
		return
	}
	c.SendAck(msg.AckID, resumedAck{Resumed: true})
}

func (d *Dispatcher) handlePauseProducer(ctx context.Context, c *websocket.Client, r *room.Room, paused bool) {
	var err error
	if paused {
		err = d.voice.PauseProducer(ctx, r.Code, c.ID())
	} else {
		err = d.voice.ResumeProducer(ctx, r.Code, c.ID())
	}
	if err != nil {
		c.SendError(err.Error())
	}
}
