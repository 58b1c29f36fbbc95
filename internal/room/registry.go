package room

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/parlorhq/parlor/internal/domain"
)

// Registry is the process-wide room map. It owns two maps guarded by its own
// lock: code → room and connection ID → code. It never takes a room's lock
// while holding its own, so readers (lobby, health) stay non-blocking
// relative to per-room mutation.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	byConn map[string]string

	clock  domain.Clock
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(clock domain.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		byConn: make(map[string]string),
		clock:  clock,
		logger: logger.With("component", "registry"),
	}
}

// CreateRoom allocates an unused code, creates a room with the caller as
// host, and binds the connection to it.
func (reg *Registry) CreateRoom(connID, rawName string) (*Room, *domain.Participant, error) {
	now := reg.clock.Now()

	reg.mu.Lock()
	defer reg.mu.Unlock()

	code, err := reg.mintCodeLocked()
	if err != nil {
		return nil, nil, err
	}

	r := New(code, now)
	p := domain.NewParticipant(connID, rawName, code, now)
	r.AddParticipant(p)

	reg.rooms[code] = r
	reg.byConn[connID] = code

	reg.logger.Info("room created", "room", code, "host", connID)
	return r, p, nil
}

// mintCodeLocked rejection-samples codes against the live set.
func (reg *Registry) mintCodeLocked() (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		code, err := newCode()
		if err != nil {
			return "", err
		}
		if _, taken := reg.rooms[code]; !taken {
			return code, nil
		}
	}
	// 36^6 codes; hitting this means something is very wrong.
	return "", fmt.Errorf("could not allocate a room code")
}

// Get returns the room for a code.
func (reg *Registry) Get(code string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[code]
	return r, ok
}

// RoomFor returns the room a connection belongs to.
func (reg *Registry) RoomFor(connID string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	code, ok := reg.byConn[connID]
	if !ok {
		return nil, false
	}
	r, ok := reg.rooms[code]
	return r, ok
}

// Bind associates a connection with a room code.
func (reg *Registry) Bind(connID, code string) {
	reg.mu.Lock()
	reg.byConn[connID] = code
	reg.mu.Unlock()
}

// Unbind drops a connection's room association.
func (reg *Registry) Unbind(connID string) {
	reg.mu.Lock()
	delete(reg.byConn, connID)
	reg.mu.Unlock()
}

// Remove deletes a room, making its code reusable.
func (reg *Registry) Remove(code string) {
	reg.mu.Lock()
	delete(reg.rooms, code)
	reg.mu.Unlock()
	reg.logger.Info("room destroyed", "room", code)
}

// RoomCount returns the number of live rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// UserCount returns the number of connections bound to a room.
func (reg *Registry) UserCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.byConn)
}

// snapshotRooms copies the room list so callers can lock rooms one at a time
// without holding the registry lock.
func (reg *Registry) snapshotRooms() []*Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r)
	}
	return out
}

// ForEach runs fn on every live room under that room's lock. Used by the
// heartbeat ticker.
func (reg *Registry) ForEach(fn func(*Room)) {
	for _, r := range reg.snapshotRooms() {
		r.Lock()
		if !r.Closed() {
			fn(r)
		}
		r.Unlock()
	}
}

// LobbySummary is one visible room in the public listing.
type LobbySummary struct {
	ID         string   `json:"id"`
	UserCount  int      `json:"userCount"`
	Users      []string `json:"users"`
	VideoTitle string   `json:"videoTitle,omitempty"`
	VideoURL   string   `json:"videoUrl,omitempty"`
}

// VisibleRooms snapshots every non-hidden room for the lobby endpoint.
func (reg *Registry) VisibleRooms() []LobbySummary {
	out := make([]LobbySummary, 0)
	for _, r := range reg.snapshotRooms() {
		r.Lock()
		if r.Closed() || r.Hidden {
			r.Unlock()
			continue
		}
		users := make([]string, 0, r.Size())
		for _, p := range r.Participants() {
			users = append(users, p.Name)
		}
		out = append(out, LobbySummary{
			ID:         r.Code,
			UserCount:  r.Size(),
			Users:      users,
			VideoTitle: r.VideoTitle,
			VideoURL:   r.Video.VideoURL,
		})
		r.Unlock()
	}
	return out
}
