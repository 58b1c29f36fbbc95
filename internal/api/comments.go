package api

import (
	"context"
	"net/http"
)

// CommentsFetcher is the slice of the youtube client this handler needs.
type CommentsFetcher interface {
	Fetch(ctx context.Context, videoID, sortBy, continuation string) ([]byte, error)
}

// CommentsHandler proxies comment threads for the currently watched video.
type CommentsHandler struct {
	fetcher CommentsFetcher
}

// NewCommentsHandler creates the /comments/{videoId} handler.
func NewCommentsHandler(fetcher CommentsFetcher) *CommentsHandler {
	return &CommentsHandler{fetcher: fetcher}
}

func (h *CommentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("videoId")
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "missing video id")
		return
	}

	body, err := h.fetcher.Fetch(r.Context(), videoID,
		r.URL.Query().Get("sort_by"),
		r.URL.Query().Get("continuation"))
	if err != nil {
		writeError(w, http.StatusBadGateway, "comments unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
