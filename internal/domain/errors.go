package domain

import "errors"

// Domain errors - use these for consistent error handling
var (
	// Room errors
	ErrRoomNotFound = errors.New("room not found")
	ErrNotInRoom    = errors.New("not in a room")
	ErrNotHost      = errors.New("only the host can do that")

	// Video errors
	ErrInvalidVideoURL = errors.New("unsupported video URL")
	ErrInvalidRate     = errors.New("playback rate out of range")

	// Chat errors
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrMessageTooLong  = errors.New("message is too long")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotMessageOwner = errors.New("only the author or the host can delete a message")

	// Queue errors
	ErrQueueFull         = errors.New("queue is full")
	ErrQueueItemNotFound = errors.New("queue item not found")
	ErrQueueEmpty        = errors.New("queue is empty")

	// Screen share errors
	ErrShareActive = errors.New("someone is already sharing their screen")
	ErrNotSharing  = errors.New("no active screen share")

	// Voice errors
	ErrPeerNotFound      = errors.New("voice peer not found")
	ErrTransportNotFound = errors.New("transport not found")
	ErrProducerNotFound  = errors.New("producer not found")
	ErrConsumerNotFound  = errors.New("consumer not found")
	ErrCannotConsume     = errors.New("client cannot consume this producer")
	ErrAlreadyProducing  = errors.New("peer already has a producer")
)
