package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage_CreatesCorrectEnvelope(t *testing.T) {
	before := time.Now()
	msg, err := NewMessage("test.event", map[string]string{"key": "value"})
	after := time.Now()

	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, "test.event", msg.Type)
	assert.NotNil(t, msg.Payload)
	assert.Empty(t, msg.AckID)
	assert.False(t, msg.Timestamp.IsZero())
	assert.True(t, !msg.Timestamp.Before(before) && !msg.Timestamp.After(after))
}

func TestNewMessage_NilPayload(t *testing.T) {
	msg, err := NewMessage("test.event", nil)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), msg.Payload)
}

func TestNewMessage_InvalidPayload(t *testing.T) {
	// Channels cannot be marshalled to JSON
	msg, err := NewMessage("test.event", make(chan int))
	assert.Error(t, err)
	assert.Nil(t, msg)
}

func TestNewAck_EchoesAckID(t *testing.T) {
	msg, err := NewAck("req-42", map[string]string{"roomId": "AB12CD"})
	require.NoError(t, err)

	assert.Equal(t, EventAck, msg.Type)
	assert.Equal(t, "req-42", msg.AckID)

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "ack", raw["type"])
	assert.Equal(t, "req-42", raw["ackId"])
}

func TestMessage_JSONFormat(t *testing.T) {
	msg, _ := NewMessage("test.event", map[string]string{"hello": "world"})
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Contains(t, raw, "type")
	assert.Contains(t, raw, "payload")
	assert.Contains(t, raw, "timestamp")
	assert.NotContains(t, raw, "ackId")
	assert.Equal(t, "test.event", raw["type"])
}

func TestMessage_InboundAckID(t *testing.T) {
	data := []byte(`{"type":"room:create","payload":{"name":"alice"},"ackId":"c-1"}`)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, EventRoomCreate, msg.Type)
	assert.Equal(t, "c-1", msg.AckID)
	assert.JSONEq(t, `{"name":"alice"}`, string(msg.Payload))
}

func TestEventTypeConstants_NotEmpty(t *testing.T) {
	clientEvents := []string{
		EventRoomCreate, EventRoomJoin, EventRoomLeave, EventRoomSetHidden,
		EventVideoLoad, EventVideoPlay, EventVideoPause, EventVideoSeek,
		EventVideoRate, EventVideoEnded,
		EventQueueAdd, EventQueueRemove, EventQueueReorder, EventQueuePlay,
		EventQueuePlayNext,
		EventChatMessage, EventChatDelete,
		EventVoiceJoin, EventVoiceLeave, EventVoiceCreateSendTransport,
		EventVoiceCreateRecvTransport, EventVoiceConnectTransport,
		EventVoiceProduce, EventVoiceConsume, EventVoiceResumeConsumer,
		EventVoicePauseProducer, EventVoiceResumeProducer,
		EventScreenStart, EventScreenStop, EventScreenOffer,
		EventScreenAnswer, EventScreenICECandidate,
	}
	for _, e := range clientEvents {
		assert.NotEmpty(t, e, "client event type should not be empty")
	}

	serverEvents := []string{
		EventError, EventAck,
		EventRoomState, EventRoomUserJoined, EventRoomUserLeft, EventRoomHostChanged,
		EventVideoStateUpdate, EventVideoHeartbeat, EventQueueUpdate,
		EventVoiceUserJoined, EventVoiceUserLeft, EventVoiceNewProducer,
		EventVoiceProducerClosed,
		EventScreenStarted, EventScreenStopped, EventScreenViewerJoined,
	}
	for _, e := range serverEvents {
		assert.NotEmpty(t, e, "server event type should not be empty")
	}
}
