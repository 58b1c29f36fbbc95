package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlorhq/parlor/internal/config"
	"github.com/parlorhq/parlor/internal/domain"
	"github.com/parlorhq/parlor/internal/room"
)

func newTestRegistry(t *testing.T) *room.Registry {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return room.NewRegistry(domain.RealClock{}, logger)
}

// =============================================================================
// /health
// =============================================================================

func TestHealthHandler(t *testing.T) {
	registry := newTestRegistry(t)
	_, _, err := registry.CreateRoom("conn-1", "Alice")
	require.NoError(t, err)

	h := NewHealthHandler(registry)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Status string `json:"status"`
		Rooms  int    `json:"rooms"`
		Users  int    `json:"users"`
		Uptime int64  `json:"uptime"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Rooms)
	assert.Equal(t, 1, body.Users)
	assert.GreaterOrEqual(t, body.Uptime, int64(0))
}

// =============================================================================
// /ice-servers
// =============================================================================

func TestICEServersHandler_STUNOnly(t *testing.T) {
	cfg := &config.Config{STUNURLs: []string{"stun:stun.l.google.com:19302"}}
	h := NewICEServersHandler(cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ice-servers", nil))

	var body struct {
		ICEServers []ICEServer `json:"iceServers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.ICEServers, 1)
	assert.Equal(t, cfg.STUNURLs, body.ICEServers[0].URLs)
	assert.Empty(t, body.ICEServers[0].Username)
}

func TestICEServersHandler_WithTURN(t *testing.T) {
	cfg := &config.Config{
		STUNURLs:       []string{"stun:stun.example.com:3478"},
		TURNURL:        "turn:turn.example.com:3478",
		TURNUsername:   "user",
		TURNCredential: "secret",
	}
	h := NewICEServersHandler(cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ice-servers", nil))

	var body struct {
		ICEServers []ICEServer `json:"iceServers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.ICEServers, 2)
	assert.Equal(t, []string{"turn:turn.example.com:3478"}, body.ICEServers[1].URLs)
	assert.Equal(t, "user", body.ICEServers[1].Username)
	assert.Equal(t, "secret", body.ICEServers[1].Credential)
}

// =============================================================================
// /rooms
// =============================================================================

func TestLobbyHandler_ListsVisibleRooms(t *testing.T) {
	registry := newTestRegistry(t)
	created, _, err := registry.CreateRoom("conn-1", "Alice")
	require.NoError(t, err)

	h := NewLobbyHandler(registry, true)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))

	var body struct {
		Enabled bool                `json:"enabled"`
		Rooms   []room.LobbySummary `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Enabled)
	require.Len(t, body.Rooms, 1)
	assert.Equal(t, created.Code, body.Rooms[0].ID)
	assert.Equal(t, []string{"Alice"}, body.Rooms[0].Users)
}

func TestLobbyHandler_DisabledStillAnswers(t *testing.T) {
	registry := newTestRegistry(t)
	_, _, err := registry.CreateRoom("conn-1", "Alice")
	require.NoError(t, err)

	h := NewLobbyHandler(registry, false)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Enabled bool                `json:"enabled"`
		Rooms   []room.LobbySummary `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Enabled)
	assert.NotNil(t, body.Rooms)
	assert.Empty(t, body.Rooms)
}

// =============================================================================
// /comments/{videoId}
// =============================================================================

type stubFetcher struct {
	body []byte
	err  error

	gotVideoID      string
	gotSortBy       string
	gotContinuation string
}

func (s *stubFetcher) Fetch(ctx context.Context, videoID, sortBy, continuation string) ([]byte, error) {
	s.gotVideoID = videoID
	s.gotSortBy = sortBy
	s.gotContinuation = continuation
	return s.body, s.err
}

func commentsMux(h *CommentsHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /comments/{videoId}", h)
	return mux
}

func TestCommentsHandler_PassesThroughUpstreamJSON(t *testing.T) {
	fetcher := &stubFetcher{body: []byte(`{"comments":[{"content":"nice"}]}`)}
	mux := commentsMux(NewCommentsHandler(fetcher))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/comments/dQw4w9WgXcQ?sort_by=top&continuation=abc", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"comments":[{"content":"nice"}]}`, rec.Body.String())
	assert.Equal(t, "dQw4w9WgXcQ", fetcher.gotVideoID)
	assert.Equal(t, "top", fetcher.gotSortBy)
	assert.Equal(t, "abc", fetcher.gotContinuation)
}

func TestCommentsHandler_UpstreamFailureIs502(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("everything is on fire")}
	mux := commentsMux(NewCommentsHandler(fetcher))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/comments/dQw4w9WgXcQ", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "comments unavailable", body.Error)
}
