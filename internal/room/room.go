// Package room holds the per-room aggregate and the process-wide registry.
//
// A Room is a plain aggregate with an exported lock: the event dispatcher is
// the single writer and holds the lock across one handler plus its emissions,
// so every method here assumes the caller already owns the lock.
package room

import (
	"sync"
	"time"

	"github.com/parlorhq/parlor/internal/domain"
)

// Room is one watch-party coordination context.
type Room struct {
	mu sync.Mutex

	Code      string
	HostID    string
	Hidden    bool
	CreatedAt time.Time

	Video *domain.VideoState
	// VideoTitle mirrors the current video's display title for the lobby
	// listing; filled in asynchronously for YouTube videos.
	VideoTitle string

	ScreenSharerID string

	participants map[string]*domain.Participant
	order        []string // connection IDs in join order, for host transfer
	chat         []domain.ChatMessage
	queue        []domain.QueueItem
	voice        map[string]struct{}

	closed    bool
	endedBusy bool
}

// New creates an empty room with the given host-to-be code.
func New(code string, createdAt time.Time) *Room {
	return &Room{
		Code:         code,
		CreatedAt:    createdAt,
		Video:        domain.NewVideoState(),
		participants: make(map[string]*domain.Participant),
		voice:        make(map[string]struct{}),
	}
}

// Lock takes the room's single-writer lock.
func (r *Room) Lock() { r.mu.Lock() }

// Unlock releases the room's single-writer lock.
func (r *Room) Unlock() { r.mu.Unlock() }

// Closed reports whether the room has been torn down. A connection that
// looked the room up just before its last member left must not join it.
func (r *Room) Closed() bool { return r.closed }

func (r *Room) markClosed() { r.closed = true }

// AddParticipant registers a participant; the first one becomes host.
func (r *Room) AddParticipant(p *domain.Participant) {
	r.participants[p.ID] = p
	r.order = append(r.order, p.ID)
	if len(r.participants) == 1 {
		r.HostID = p.ID
	}
}

// RemoveParticipant removes a participant and reassigns the host when the
// departing participant held it: the earliest-joined remaining participant
// wins. The last departure closes the room.
func (r *Room) RemoveParticipant(connID string) (removed *domain.Participant, hostChanged bool) {
	p, ok := r.participants[connID]
	if !ok {
		return nil, false
	}
	delete(r.participants, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	delete(r.voice, connID)
	if r.ScreenSharerID == connID {
		r.ScreenSharerID = ""
	}

	if len(r.participants) == 0 {
		r.HostID = ""
		r.markClosed()
		return p, false
	}
	if r.HostID == connID {
		r.HostID = r.order[0]
		return p, true
	}
	return p, false
}

// Participant looks up a member by connection ID.
func (r *Room) Participant(connID string) (*domain.Participant, bool) {
	p, ok := r.participants[connID]
	return p, ok
}

// Participants returns members in join order.
func (r *Room) Participants() []*domain.Participant {
	out := make([]*domain.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.participants[id])
	}
	return out
}

// Size returns the member count.
func (r *Room) Size() int { return len(r.participants) }

// AppendChat appends a message, dropping the oldest entry past the cap.
func (r *Room) AppendChat(msg domain.ChatMessage) {
	r.chat = append(r.chat, msg)
	if len(r.chat) > domain.MaxChatLogLen {
		r.chat = append([]domain.ChatMessage(nil), r.chat[len(r.chat)-domain.MaxChatLogLen:]...)
	}
}

// DeleteChat hard-deletes a message. Only the author or the host may.
func (r *Room) DeleteChat(messageID, requesterID string) error {
	for i, m := range r.chat {
		if m.ID != messageID {
			continue
		}
		if m.AuthorID != requesterID && requesterID != r.HostID {
			return domain.ErrNotMessageOwner
		}
		r.chat = append(r.chat[:i], r.chat[i+1:]...)
		return nil
	}
	return domain.ErrMessageNotFound
}

// ChatLog returns a copy of the chat log.
func (r *Room) ChatLog() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(r.chat))
	copy(out, r.chat)
	return out
}

// AddQueueItem appends to the queue, enforcing the capacity bound.
func (r *Room) AddQueueItem(item domain.QueueItem) error {
	if len(r.queue) >= domain.MaxQueueLen {
		return domain.ErrQueueFull
	}
	r.queue = append(r.queue, item)
	return nil
}

// RemoveQueueItem deletes an item by ID.
func (r *Room) RemoveQueueItem(itemID string) error {
	for i, item := range r.queue {
		if item.ID == itemID {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return nil
		}
	}
	return domain.ErrQueueItemNotFound
}

// TakeQueueItem removes and returns an item by ID.
func (r *Room) TakeQueueItem(itemID string) (domain.QueueItem, error) {
	for i, item := range r.queue {
		if item.ID == itemID {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return item, nil
		}
	}
	return domain.QueueItem{}, domain.ErrQueueItemNotFound
}

// MoveQueueItem reorders an item to the given index (clamped).
func (r *Room) MoveQueueItem(itemID string, index int) error {
	from := -1
	for i, item := range r.queue {
		if item.ID == itemID {
			from = i
			break
		}
	}
	if from == -1 {
		return domain.ErrQueueItemNotFound
	}
	item := r.queue[from]
	r.queue = append(r.queue[:from], r.queue[from+1:]...)
	if index < 0 {
		index = 0
	}
	if index > len(r.queue) {
		index = len(r.queue)
	}
	r.queue = append(r.queue[:index], append([]domain.QueueItem{item}, r.queue[index:]...)...)
	return nil
}

// PopQueue removes and returns the queue head.
func (r *Room) PopQueue() (domain.QueueItem, bool) {
	if len(r.queue) == 0 {
		return domain.QueueItem{}, false
	}
	head := r.queue[0]
	r.queue = r.queue[1:]
	return head, true
}

// SetQueueTitle updates an item's title after an async lookup. Returns false
// when the item has already left the queue.
func (r *Room) SetQueueTitle(itemID, title string) bool {
	for i := range r.queue {
		if r.queue[i].ID == itemID {
			r.queue[i].Title = title
			return true
		}
	}
	return false
}

// QueueItems returns a copy of the queue.
func (r *Room) QueueItems() []domain.QueueItem {
	out := make([]domain.QueueItem, len(r.queue))
	copy(out, r.queue)
	return out
}

// QueueLen returns the queue length.
func (r *Room) QueueLen() int { return len(r.queue) }

// JoinVoice adds a member to the voice session.
func (r *Room) JoinVoice(connID string) {
	if _, ok := r.participants[connID]; ok {
		r.voice[connID] = struct{}{}
	}
}

// LeaveVoice removes a member from the voice session; reports membership.
func (r *Room) LeaveVoice(connID string) bool {
	_, ok := r.voice[connID]
	delete(r.voice, connID)
	return ok
}

// InVoice reports voice membership.
func (r *Room) InVoice(connID string) bool {
	_, ok := r.voice[connID]
	return ok
}

// VoiceMembers returns the voice member connection IDs in join order.
func (r *Room) VoiceMembers() []string {
	out := make([]string, 0, len(r.voice))
	for _, id := range r.order {
		if _, ok := r.voice[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// TryBeginEnded claims the ended debounce. Multiple clients fire "ended"
// within a few hundred milliseconds of each other at end-of-video; only the
// first claim advances the queue, the rest are no-ops until FinishEnded.
func (r *Room) TryBeginEnded() bool {
	if r.endedBusy {
		return false
	}
	r.endedBusy = true
	return true
}

// FinishEnded releases the ended debounce.
func (r *Room) FinishEnded() {
	r.endedBusy = false
}

// ParticipantInfo is the wire shape of a room member.
type ParticipantInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	IsHost bool   `json:"isHost"`
}

// State is the full snapshot sent to a participant on join.
type State struct {
	RoomID         string               `json:"roomId"`
	HostID         string               `json:"hostId"`
	Participants   []ParticipantInfo    `json:"participants"`
	Video          domain.VideoSnapshot `json:"video"`
	Chat           []domain.ChatMessage `json:"chat"`
	Queue          []domain.QueueItem   `json:"queue"`
	VoiceMembers   []string             `json:"voiceMembers"`
	ScreenSharerID string               `json:"screenSharerId,omitempty"`
	Hidden         bool                 `json:"hidden"`
}

// Snapshot builds the full room state stamped at now.
func (r *Room) Snapshot(now time.Time) State {
	infos := make([]ParticipantInfo, 0, len(r.order))
	for _, id := range r.order {
		p := r.participants[id]
		infos = append(infos, ParticipantInfo{
			ID:     p.ID,
			Name:   p.Name,
			Avatar: p.Avatar,
			IsHost: p.ID == r.HostID,
		})
	}
	return State{
		RoomID:         r.Code,
		HostID:         r.HostID,
		Participants:   infos,
		Video:          r.Video.Snapshot(now),
		Chat:           r.ChatLog(),
		Queue:          r.QueueItems(),
		VoiceMembers:   r.VoiceMembers(),
		ScreenSharerID: r.ScreenSharerID,
		Hidden:         r.Hidden,
	}
}
