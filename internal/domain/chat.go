package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxChatMessageLen caps a single chat message in runes.
	MaxChatMessageLen = 500

	// MaxChatLogLen caps the per-room chat log; oldest entries drop first.
	MaxChatLogLen = 200

	// SystemAuthorID marks messages injected by the server.
	SystemAuthorID = "system"
)

// ChatMessageKind distinguishes participant messages from server notices.
type ChatMessageKind string

const (
	ChatKindMessage ChatMessageKind = "message"
	ChatKindSystem  ChatMessageKind = "system"
)

// ChatMessage is immutable once created, except for hard deletion by the
// author or the host.
type ChatMessage struct {
	ID        string          `json:"id"`
	AuthorID  string          `json:"authorId"`
	Author    string          `json:"author"`
	Avatar    string          `json:"avatar,omitempty"`
	Text      string          `json:"text"`
	Timestamp int64           `json:"timestamp"` // unix ms
	Kind      ChatMessageKind `json:"kind"`
}

// NewChatMessage validates and builds a participant message.
func NewChatMessage(author *Participant, text string, now time.Time) (ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatMessage{}, ErrEmptyMessage
	}
	if len([]rune(text)) > MaxChatMessageLen {
		return ChatMessage{}, ErrMessageTooLong
	}
	return ChatMessage{
		ID:        uuid.NewString(),
		AuthorID:  author.ID,
		Author:    author.Name,
		Avatar:    author.Avatar,
		Text:      text,
		Timestamp: now.UnixMilli(),
		Kind:      ChatKindMessage,
	}, nil
}

// NewSystemMessage builds a server-injected notice.
func NewSystemMessage(text string, now time.Time) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		AuthorID:  SystemAuthorID,
		Author:    SystemAuthorID,
		Text:      text,
		Timestamp: now.UnixMilli(),
		Kind:      ChatKindSystem,
	}
}
