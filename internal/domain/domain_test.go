package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Participant normalization
// =============================================================================

func TestNormalizeDisplayName_TrimsWhitespace(t *testing.T) {
	assert.Equal(t, "Alice", NormalizeDisplayName("  Alice  "))
}

func TestNormalizeDisplayName_CapsLength(t *testing.T) {
	long := strings.Repeat("x", 50)
	got := NormalizeDisplayName(long)
	assert.Len(t, []rune(got), MaxDisplayNameLen)
}

func TestNormalizeDisplayName_CapsByRunesNotBytes(t *testing.T) {
	long := strings.Repeat("ü", 25)
	got := NormalizeDisplayName(long)
	assert.Equal(t, strings.Repeat("ü", MaxDisplayNameLen), got)
}

func TestNormalizeDisplayName_EmptyDrawsFromPool(t *testing.T) {
	got := NormalizeDisplayName("   ")
	assert.Contains(t, fallbackNames, got)
}

func TestAvatarFor_DeterministicPerName(t *testing.T) {
	a := AvatarFor("Alice")
	assert.Equal(t, a, AvatarFor("Alice"))
	assert.Contains(t, avatarPool, a)
}

func TestNewParticipant(t *testing.T) {
	now := time.Now()
	p := NewParticipant("conn-1", "  Bob  ", "ABCD", now)

	assert.Equal(t, "conn-1", p.ID)
	assert.Equal(t, "Bob", p.Name)
	assert.Equal(t, AvatarFor("Bob"), p.Avatar)
	assert.Equal(t, "ABCD", p.RoomCode)
	assert.Equal(t, now, p.JoinedAt)
}

// =============================================================================
// Chat messages
// =============================================================================

func TestNewChatMessage_Valid(t *testing.T) {
	now := time.Now()
	author := NewParticipant("conn-1", "Alice", "ABCD", now)

	msg, err := NewChatMessage(author, "  hello there  ", now)
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "conn-1", msg.AuthorID)
	assert.Equal(t, "Alice", msg.Author)
	assert.Equal(t, author.Avatar, msg.Avatar)
	assert.Equal(t, "hello there", msg.Text)
	assert.Equal(t, now.UnixMilli(), msg.Timestamp)
	assert.Equal(t, ChatKindMessage, msg.Kind)
}

func TestNewChatMessage_RejectsEmpty(t *testing.T) {
	author := NewParticipant("conn-1", "Alice", "ABCD", time.Now())

	_, err := NewChatMessage(author, "   ", time.Now())
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestNewChatMessage_RejectsTooLong(t *testing.T) {
	author := NewParticipant("conn-1", "Alice", "ABCD", time.Now())

	_, err := NewChatMessage(author, strings.Repeat("a", MaxChatMessageLen+1), time.Now())
	assert.ErrorIs(t, err, ErrMessageTooLong)
}

func TestNewChatMessage_AcceptsExactLimit(t *testing.T) {
	author := NewParticipant("conn-1", "Alice", "ABCD", time.Now())

	msg, err := NewChatMessage(author, strings.Repeat("a", MaxChatMessageLen), time.Now())
	require.NoError(t, err)
	assert.Len(t, []rune(msg.Text), MaxChatMessageLen)
}

func TestNewSystemMessage(t *testing.T) {
	now := time.Now()
	msg := NewSystemMessage("Alice joined the room", now)

	assert.Equal(t, SystemAuthorID, msg.AuthorID)
	assert.Equal(t, ChatKindSystem, msg.Kind)
	assert.Equal(t, "Alice joined the room", msg.Text)
	assert.NotEmpty(t, msg.ID)
}

// =============================================================================
// Queue items
// =============================================================================

func TestNewQueueItem_YouTubeUsesIDAsPlaceholderTitle(t *testing.T) {
	now := time.Now()
	item, err := NewQueueItem("https://youtu.be/dQw4w9WgXcQ", "Alice", now)
	require.NoError(t, err)

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "dQw4w9WgXcQ", item.VideoID)
	assert.Equal(t, "dQw4w9WgXcQ", item.Title)
	assert.Equal(t, "Alice", item.AddedBy)
	assert.Equal(t, now.UnixMilli(), item.AddedAt)
}

func TestNewQueueItem_DirectUsesURLTail(t *testing.T) {
	item, err := NewQueueItem("https://cdn.example.com/media/movie.mp4?token=abc", "Bob", time.Now())
	require.NoError(t, err)

	assert.Empty(t, item.VideoID)
	assert.Equal(t, "movie.mp4", item.Title)
}

func TestNewQueueItem_RejectsInvalidURL(t *testing.T) {
	_, err := NewQueueItem("not a url", "Alice", time.Now())
	assert.ErrorIs(t, err, ErrInvalidVideoURL)
}
