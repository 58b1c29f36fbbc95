package dispatch

import (
	"github.com/parlorhq/parlor/internal/sfu"
)

// Inbound payloads.

type roomCreateRequest struct {
	UserName string `json:"userName"`
}

type roomJoinRequest struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

type setHiddenRequest struct {
	Hidden bool `json:"hidden"`
}

type videoLoadRequest struct {
	URL string `json:"url"`
}

type positionRequest struct {
	CurrentTime float64 `json:"currentTime"`
}

type rateRequest struct {
	Rate float64 `json:"rate"`
}

type queueAddRequest struct {
	URL string `json:"url"`
}

type queueItemRequest struct {
	ItemID string `json:"itemId"`
}

type queueReorderRequest struct {
	ItemID string `json:"itemId"`
	Index  int    `json:"index"`
}

type chatMessageRequest struct {
	Text string `json:"text"`
}

type chatDeleteRequest struct {
	MessageID string `json:"messageId"`
}

type connectTransportRequest struct {
	TransportID    string             `json:"transportId"`
	DTLSParameters sfu.DTLSParameters `json:"dtlsParameters"`
	ICEParameters  sfu.ICEParameters  `json:"iceParameters"`
	ICECandidates  []sfu.ICECandidate `json:"iceCandidates"`
}

type produceRequest struct {
	TransportID   string            `json:"transportId,omitempty"`
	Kind          string            `json:"kind"`
	RTPParameters sfu.RTPParameters `json:"rtpParameters"`
}

type consumeRequest struct {
	ProducerID      string              `json:"producerId"`
	RTPCapabilities sfu.RTPCapabilities `json:"rtpCapabilities"`
}

type resumeConsumerRequest struct {
	ConsumerID string `json:"consumerId"`
}

// Ack payloads.

type roomCreateAck struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type roomJoinAck struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	UserID  string `json:"userId,omitempty"`
}

type successAck struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type connectedAck struct {
	Connected bool `json:"connected"`
}

type producedAck struct {
	ProducerID string `json:"producerId"`
}

type resumedAck struct {
	Resumed bool `json:"resumed"`
}

// Outbound payloads.

type userJoinedEvent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type userLeftEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type hostChangedEvent struct {
	HostID string `json:"hostId"`
}

type hiddenChangedEvent struct {
	Hidden bool `json:"hidden"`
}

type queueUpdateEvent struct {
	Queue interface{} `json:"queue"`
}

type chatDeleteEvent struct {
	MessageID string `json:"messageId"`
}

type voiceMemberEvent struct {
	ID string `json:"id"`
}

type screenStartedEvent struct {
	SharerID string `json:"sharerId"`
}

type viewerJoinedEvent struct {
	ViewerID string `json:"viewerId"`
}
