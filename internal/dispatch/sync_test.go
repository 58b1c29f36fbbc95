package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlorhq/parlor/internal/domain"
	"github.com/parlorhq/parlor/internal/websocket"
)

func decodeSnapshot(t *testing.T, msg *websocket.Message) domain.VideoSnapshot {
	t.Helper()
	var snap domain.VideoSnapshot
	require.NoError(t, json.Unmarshal(msg.Payload, &snap))
	return snap
}

// =============================================================================
// Video load and live updates
// =============================================================================

func TestVideoLoad_BroadcastsSnapshotToAll(t *testing.T) {
	env := newTestEnv(t, nil)
	host, code, _ := env.createRoom("Alice")
	guest, _ := env.joinRoom(code, "Bob")
	host.expect(websocket.EventRoomUserJoined)

	guest.send(websocket.EventVideoLoad,
		map[string]string{"url": "https://youtu.be/dQw4w9WgXcQ"}, "")

	for _, c := range []*wsClient{host, guest} {
		snap := decodeSnapshot(t, c.expect(websocket.EventVideoLoad))
		assert.Equal(t, "dQw4w9WgXcQ", snap.VideoID)
		assert.Equal(t, domain.VideoTypeYouTube, snap.VideoType)
		assert.True(t, snap.IsPlaying)
		assert.Equal(t, uint64(1), snap.Seq)
		assert.Less(t, snap.CurrentTime, 1.0)
	}
}

func TestVideoLoad_RejectsUnsupportedURL(t *testing.T) {
	env := newTestEnv(t, nil)
	c, _, _ := env.createRoom("Alice")

	c.send(websocket.EventVideoLoad, map[string]string{"url": "https://example.com/page"}, "")

	errMsg := c.expect(websocket.EventError)
	var payload websocket.ErrorPayload
	require.NoError(t, json.Unmarshal(errMsg.Payload, &payload))
	assert.Equal(t, domain.ErrInvalidVideoURL.Error(), payload.Message)
}

func TestVideoPauseAndPlay_Broadcast(t *testing.T) {
	env := newTestEnv(t, nil)
	host, code, _ := env.createRoom("Alice")
	guest, _ := env.joinRoom(code, "Bob")

	host.send(websocket.EventVideoLoad, map[string]string{"url": "https://cdn.example.com/movie.mp4"}, "")
	guest.expect(websocket.EventVideoLoad)

	guest.send(websocket.EventVideoPause, map[string]float64{"currentTime": 12.5}, "")
	snap := decodeSnapshot(t, host.expect(websocket.EventVideoStateUpdate))
	assert.False(t, snap.IsPlaying)
	assert.Equal(t, 12.5, snap.CurrentTime)
	assert.Equal(t, uint64(2), snap.Seq)

	guest.send(websocket.EventVideoPlay, nil, "")
	snap = decodeSnapshot(t, host.expect(websocket.EventVideoStateUpdate))
	assert.True(t, snap.IsPlaying)
	assert.Equal(t, uint64(3), snap.Seq)
	assert.InDelta(t, 12.5, snap.CurrentTime, 0.5)
}

func TestVideoSeek_Broadcast(t *testing.T) {
	env := newTestEnv(t, nil)
	host, code, _ := env.createRoom("Alice")
	guest, _ := env.joinRoom(code, "Bob")

	host.send(websocket.EventVideoLoad, map[string]string{"url": "https://cdn.example.com/movie.mp4"}, "")
	guest.expect(websocket.EventVideoLoad)

	guest.send(websocket.EventVideoSeek, map[string]float64{"currentTime": 300}, "")
	snap := decodeSnapshot(t, host.expect(websocket.EventVideoStateUpdate))
	assert.InDelta(t, 300, snap.CurrentTime, 0.5)
	assert.Equal(t, uint64(2), snap.Seq)
}

// =============================================================================
// Echo suppression
// =============================================================================

func TestVideoPlayEcho_NoBroadcast(t *testing.T) {
	env := newTestEnv(t, nil)
	host, code, _ := env.createRoom("Alice")
	guest, _ := env.joinRoom(code, "Bob")

	// Load starts playback; every client's media element then echoes a native
	// play event back at the server.
	host.send(websocket.EventVideoLoad, map[string]string{"url": "https://cdn.example.com/movie.mp4"}, "")
	host.expect(websocket.EventVideoLoad)
	guest.expect(websocket.EventVideoLoad)

	guest.send(websocket.EventVideoPlay, nil, "")
	host.send(websocket.EventVideoPlay, nil, "")

	host.barrier("still playing", websocket.EventVideoStateUpdate)
}

func TestVideoPauseEcho_NoBroadcast(t *testing.T) {
	env := newTestEnv(t, nil)
	host, code, _ := env.createRoom("Alice")
	guest, _ := env.joinRoom(code, "Bob")

	host.send(websocket.EventVideoLoad, map[string]string{"url": "https://cdn.example.com/movie.mp4"}, "")
	host.expect(websocket.EventVideoLoad)
	guest.expect(websocket.EventVideoLoad)

	host.send(websocket.EventVideoPause, map[string]float64{"currentTime": 10}, "")
	snap := decodeSnapshot(t, host.expect(websocket.EventVideoStateUpdate))
	require.False(t, snap.IsPlaying)

	// The guest's media element pauses a beat later and reports a slightly
	// different position; that echo must not move the shared anchor.
	guest.send(websocket.EventVideoPause, map[string]float64{"currentTime": 10.4}, "")

	host.barrier("anchor held", websocket.EventVideoStateUpdate)

	r, ok := env.registry.Get(code)
	require.True(t, ok)
	r.Lock()
	assert.Equal(t, 10.0, r.Video.AnchorPosition)
	assert.Equal(t, uint64(2), r.Video.Seq)
	r.Unlock()
}

// =============================================================================
// Rate changes
// =============================================================================

func TestVideoRate_KeepsPositionContinuous(t *testing.T) {
	env := newTestEnv(t, nil)
	host, code, _ := env.createRoom("Alice")
	guest, _ := env.joinRoom(code, "Bob")

	host.send(websocket.EventVideoLoad, map[string]string{"url": "https://cdn.example.com/movie.mp4"}, "")
	guest.expect(websocket.EventVideoLoad)

	guest.send(websocket.EventVideoSeek, map[string]float64{"currentTime": 100}, "")
	guest.expect(websocket.EventVideoStateUpdate)

	guest.send(websocket.EventVideoRate, map[string]float64{"rate": 2.0}, "")
	snap := decodeSnapshot(t, guest.expect(websocket.EventVideoStateUpdate))
	assert.Equal(t, 2.0, snap.Rate)
	assert.InDelta(t, 100, snap.CurrentTime, 1.0)
	assert.Equal(t, uint64(3), snap.Seq)
}

func TestVideoRate_RejectsOutOfRange(t *testing.T) {
	env := newTestEnv(t, nil)
	c, _, _ := env.createRoom("Alice")

	c.send(websocket.EventVideoLoad, map[string]string{"url": "https://cdn.example.com/movie.mp4"}, "")
	c.expect(websocket.EventVideoLoad)

	c.send(websocket.EventVideoRate, map[string]float64{"rate": 0}, "")
	errMsg := c.expect(websocket.EventError)
	var payload websocket.ErrorPayload
	require.NoError(t, json.Unmarshal(errMsg.Payload, &payload))
	assert.Equal(t, domain.ErrInvalidRate.Error(), payload.Message)

	c.barrier("rate unchanged", websocket.EventVideoStateUpdate)
}

// =============================================================================
// Queue and ended debounce
// =============================================================================

func TestQueueAdd_AckAndUpdate(t *testing.T) {
	env := newTestEnv(t, nil)
	c, _, _ := env.createRoom("Alice")

	c.send(websocket.EventQueueAdd, map[string]string{"url": "https://cdn.example.com/next.mp4"}, "q-1")

	var ack struct {
		Success bool `json:"success"`
	}
	c.ack("q-1", &ack)
	assert.True(t, ack.Success)

	update := c.expect(websocket.EventQueueUpdate)
	var qv struct {
		Queue []domain.QueueItem `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(update.Payload, &qv))
	require.Len(t, qv.Queue, 1)
	assert.Equal(t, "next.mp4", qv.Queue[0].Title)
	assert.Equal(t, "Alice", qv.Queue[0].AddedBy)
}

func TestQueueAdd_RejectsBadURL(t *testing.T) {
	env := newTestEnv(t, nil)
	c, _, _ := env.createRoom("Alice")

	c.send(websocket.EventQueueAdd, map[string]string{"url": "nope"}, "q-1")

	var ack struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	c.ack("q-1", &ack)
	assert.False(t, ack.Success)
	assert.Equal(t, domain.ErrInvalidVideoURL.Error(), ack.Error)
}

func TestVideoEnded_DuplicatesAdvanceQueueOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	host, code, _ := env.createRoom("Alice")
	guest, _ := env.joinRoom(code, "Bob")

	host.send(websocket.EventVideoLoad, map[string]string{"url": "https://cdn.example.com/first.mp4"}, "")
	host.expect(websocket.EventVideoLoad)
	guest.expect(websocket.EventVideoLoad)

	host.send(websocket.EventQueueAdd, map[string]string{"url": "https://cdn.example.com/second.mp4"}, "q-1")
	host.ack("q-1", nil)

	// Every client reports end-of-video independently.
	host.send(websocket.EventVideoEnded, nil, "")
	guest.send(websocket.EventVideoEnded, nil, "")

	snap := decodeSnapshot(t, host.expect(websocket.EventVideoLoad))
	assert.Equal(t, "https://cdn.example.com/second.mp4", snap.VideoURL)

	update := host.expect(websocket.EventQueueUpdate)
	var qv struct {
		Queue []domain.QueueItem `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(update.Payload, &qv))
	assert.Empty(t, qv.Queue)

	// The duplicate must not load anything else.
	host.barrier("one advancement", websocket.EventVideoLoad)
}

func TestVideoEnded_EmptyQueueIsNoOp(t *testing.T) {
	env := newTestEnv(t, nil)
	c, _, _ := env.createRoom("Alice")

	c.send(websocket.EventVideoLoad, map[string]string{"url": "https://cdn.example.com/only.mp4"}, "")
	c.expect(websocket.EventVideoLoad)

	c.send(websocket.EventVideoEnded, nil, "")

	c.barrier("nothing queued", websocket.EventVideoLoad, websocket.EventQueueUpdate)
}

func TestQueuePlay_JumpsToChosenItem(t *testing.T) {
	env := newTestEnv(t, nil)
	c, _, _ := env.createRoom("Alice")

	c.send(websocket.EventQueueAdd, map[string]string{"url": "https://cdn.example.com/a.mp4"}, "q-1")
	c.ack("q-1", nil)
	c.expect(websocket.EventQueueUpdate)
	c.send(websocket.EventQueueAdd, map[string]string{"url": "https://cdn.example.com/b.mp4"}, "q-2")
	c.ack("q-2", nil)

	update := c.expect(websocket.EventQueueUpdate)
	var qv struct {
		Queue []domain.QueueItem `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(update.Payload, &qv))
	require.Len(t, qv.Queue, 2)

	c.send(websocket.EventQueuePlay, map[string]string{"itemId": qv.Queue[1].ID}, "")

	snap := decodeSnapshot(t, c.expect(websocket.EventVideoLoad))
	assert.Equal(t, "https://cdn.example.com/b.mp4", snap.VideoURL)

	update = c.expect(websocket.EventQueueUpdate)
	require.NoError(t, json.Unmarshal(update.Payload, &qv))
	require.Len(t, qv.Queue, 1)
	assert.Equal(t, "a.mp4", qv.Queue[0].Title)
}

func TestQueuePlayNext_EmptyQueueErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	c, _, _ := env.createRoom("Alice")

	c.send(websocket.EventQueuePlayNext, nil, "")

	errMsg := c.expect(websocket.EventError)
	var payload websocket.ErrorPayload
	require.NoError(t, json.Unmarshal(errMsg.Payload, &payload))
	assert.Equal(t, domain.ErrQueueEmpty.Error(), payload.Message)
}

// =============================================================================
// Async title resolution
// =============================================================================

type stubTitles struct {
	title string
	err   error
}

func (s stubTitles) Title(ctx context.Context, videoID string) (string, error) {
	return s.title, s.err
}

func TestQueueAdd_YouTubeTitleResolvesAsync(t *testing.T) {
	env := newTestEnv(t, stubTitles{title: "Never Gonna Give You Up"})
	c, _, _ := env.createRoom("Alice")

	c.send(websocket.EventQueueAdd, map[string]string{"url": "https://youtu.be/dQw4w9WgXcQ"}, "q-1")
	c.ack("q-1", nil)

	// First update carries the placeholder, the follow-up the resolved title.
	var qv struct {
		Queue []domain.QueueItem `json:"queue"`
	}
	update := c.expect(websocket.EventQueueUpdate)
	require.NoError(t, json.Unmarshal(update.Payload, &qv))
	require.Len(t, qv.Queue, 1)
	assert.Equal(t, "dQw4w9WgXcQ", qv.Queue[0].Title)

	update = c.expect(websocket.EventQueueUpdate)
	require.NoError(t, json.Unmarshal(update.Payload, &qv))
	require.Len(t, qv.Queue, 1)
	assert.Equal(t, "Never Gonna Give You Up", qv.Queue[0].Title)
}

func TestVideoLoad_TitleFillsLobbyListing(t *testing.T) {
	env := newTestEnv(t, stubTitles{title: "Never Gonna Give You Up"})
	c, code, _ := env.createRoom("Alice")

	c.send(websocket.EventVideoLoad, map[string]string{"url": "https://youtu.be/dQw4w9WgXcQ"}, "")
	c.expect(websocket.EventVideoLoad)

	require.Eventually(t, func() bool {
		r, ok := env.registry.Get(code)
		if !ok {
			return false
		}
		r.Lock()
		defer r.Unlock()
		return r.VideoTitle == "Never Gonna Give You Up"
	}, readTimeout, 10*time.Millisecond)
}

// =============================================================================
// Heartbeat
// =============================================================================

func TestHeartbeat_TickBroadcastsToPlayingRooms(t *testing.T) {
	env := newTestEnv(t, nil)
	host, code, _ := env.createRoom("Alice")
	guest, _ := env.joinRoom(code, "Bob")

	host.send(websocket.EventVideoLoad, map[string]string{"url": "https://cdn.example.com/movie.mp4"}, "")
	host.expect(websocket.EventVideoLoad)
	guest.expect(websocket.EventVideoLoad)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hb := NewHeartbeat(env.registry, env.hub, domain.RealClock{}, logger)
	hb.Tick()

	for _, c := range []*wsClient{host, guest} {
		snap := decodeSnapshot(t, c.expect(websocket.EventVideoHeartbeat))
		assert.True(t, snap.IsPlaying)
		assert.Equal(t, uint64(1), snap.Seq, "heartbeats reuse the live seq")
	}
}

func TestHeartbeat_SkipsSoloPausedAndEmptyRooms(t *testing.T) {
	env := newTestEnv(t, nil)

	// Solo room with a playing video: skipped.
	solo, _, _ := env.createRoom("Alice")
	solo.send(websocket.EventVideoLoad, map[string]string{"url": "https://cdn.example.com/a.mp4"}, "")
	solo.expect(websocket.EventVideoLoad)

	// Two participants but paused: skipped.
	pausedHost, code, _ := env.createRoom("Bob")
	pausedGuest, _ := env.joinRoom(code, "Carol")
	pausedHost.send(websocket.EventVideoLoad, map[string]string{"url": "https://cdn.example.com/b.mp4"}, "")
	pausedGuest.expect(websocket.EventVideoLoad)
	pausedHost.send(websocket.EventVideoPause, map[string]float64{"currentTime": 1}, "")
	pausedGuest.expect(websocket.EventVideoStateUpdate)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hb := NewHeartbeat(env.registry, env.hub, domain.RealClock{}, logger)
	hb.Tick()

	solo.barrier("no heartbeat here", websocket.EventVideoHeartbeat)
	pausedHost.barrier("paused rooms rest", websocket.EventVideoHeartbeat)
}
