package websocket

import (
	"encoding/json"
	"time"
)

// Event types for client -> server
const (
	EventRoomCreate    = "room:create"
	EventRoomJoin      = "room:join"
	EventRoomLeave     = "room:leave"
	EventRoomSetHidden = "room:set-hidden"

	EventVideoLoad  = "video:load"
	EventVideoPlay  = "video:play"
	EventVideoPause = "video:pause"
	EventVideoSeek  = "video:seek"
	EventVideoRate  = "video:rate"
	EventVideoEnded = "video:ended"

	EventQueueAdd      = "queue:add"
	EventQueueRemove   = "queue:remove"
	EventQueueReorder  = "queue:reorder"
	EventQueuePlay     = "queue:play"
	EventQueuePlayNext = "queue:play-next"

	EventChatMessage = "chat:message"
	EventChatDelete  = "chat:delete"

	EventVoiceJoin                = "voice:join"
	EventVoiceLeave               = "voice:leave"
	EventVoiceCreateSendTransport = "voice:create-send-transport"
	EventVoiceCreateRecvTransport = "voice:create-recv-transport"
	EventVoiceConnectTransport    = "voice:connect-transport"
	EventVoiceProduce             = "voice:produce"
	EventVoiceConsume             = "voice:consume"
	EventVoiceResumeConsumer      = "voice:resume-consumer"
	EventVoicePauseProducer       = "voice:pause-producer"
	EventVoiceResumeProducer      = "voice:resume-producer"

	EventScreenStart        = "screen:start"
	EventScreenStop         = "screen:stop"
	EventScreenOffer        = "screen:offer"
	EventScreenAnswer       = "screen:answer"
	EventScreenICECandidate = "screen:ice-candidate"
)

// Event types for server -> client
const (
	EventError = "error"
	EventAck   = "ack"

	EventRoomState       = "room:state"
	EventRoomUserJoined  = "room:user-joined"
	EventRoomUserLeft    = "room:user-left"
	EventRoomHostChanged = "room:host-changed"

	EventVideoStateUpdate = "video:state-update"
	EventVideoHeartbeat   = "video:heartbeat"
	// video:load and queue:update reuse the inbound names on the way out
	EventQueueUpdate = "queue:update"

	EventVoiceUserJoined     = "voice:user-joined"
	EventVoiceUserLeft       = "voice:user-left"
	EventVoiceNewProducer    = "voice:new-producer"
	EventVoiceProducerClosed = "voice:producer-closed"

	EventScreenStarted      = "screen:started"
	EventScreenStopped      = "screen:stopped"
	EventScreenViewerJoined = "screen:viewer-joined"
)

// Message is the wire envelope. Requests that expect a reply carry an AckID;
// the server answers with exactly one EventAck envelope echoing it.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	AckID     string          `json:"ackId,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// NewMessage creates a message with the current timestamp
func NewMessage(eventType string, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      eventType,
		Payload:   payloadBytes,
		Timestamp: time.Now(),
	}, nil
}

// NewAck creates the reply envelope for a request carrying ackID.
func NewAck(ackID string, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      EventAck,
		Payload:   payloadBytes,
		AckID:     ackID,
		Timestamp: time.Now(),
	}, nil
}

// ErrorPayload is the shape of the `error` unicast.
type ErrorPayload struct {
	Message string `json:"message"`
}
