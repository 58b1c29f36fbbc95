package domain

import (
	"hash/fnv"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDisplayNameLen is the longest accepted display name in runes.
const MaxDisplayNameLen = 20

// Participant is one connection inside one room. The ID is the connection ID
// and stays stable for the connection's lifetime.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar"`
	RoomCode string    `json:"-"`
	JoinedAt time.Time `json:"-"`
}

// fallbackNames is the pool used when a client sends an empty name.
var fallbackNames = []string{
	"Popcorn", "Couch Potato", "Night Owl", "Binger", "Lurker",
	"Projectionist", "Usher", "Critic", "Director", "Extra",
}

var avatarPool = []string{
	"🍿", "🎬", "📺", "🛋️", "🎞️", "🌙", "🐼", "🦊", "🐸", "🐙",
	"🦉", "🍕", "🎧", "👾", "🤖", "🐱", "🐶", "🦄", "🌵", "🍩",
}

// NormalizeDisplayName trims and caps a requested display name. Empty input
// draws from the fallback pool.
func NormalizeDisplayName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return fallbackNames[rand.Intn(len(fallbackNames))]
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		runes := []rune(name)
		name = string(runes[:MaxDisplayNameLen])
	}
	return name
}

// AvatarFor picks a deterministic emoji for a display name, so the same name
// always renders the same avatar without any stored mapping.
func AvatarFor(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return avatarPool[h.Sum32()%uint32(len(avatarPool))]
}

// NewParticipant builds a participant for a connection joining a room.
func NewParticipant(connID, rawName, roomCode string, joinedAt time.Time) *Participant {
	name := NormalizeDisplayName(rawName)
	return &Participant{
		ID:       connID,
		Name:     name,
		Avatar:   AvatarFor(name),
		RoomCode: roomCode,
		JoinedAt: joinedAt,
	}
}
