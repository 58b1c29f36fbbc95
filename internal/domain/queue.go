package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxQueueLen caps the per-room video queue.
const MaxQueueLen = 50

// QueueItem is one queued video. VideoID is empty for direct URLs; Title is
// best-effort and may be filled in asynchronously for YouTube items.
type QueueItem struct {
	ID       string `json:"id"`
	VideoID  string `json:"videoId,omitempty"`
	VideoURL string `json:"videoUrl"`
	Title    string `json:"title"`
	AddedBy  string `json:"addedBy"`
	AddedAt  int64  `json:"addedAt"` // unix ms
}

// NewQueueItem classifies the URL and builds an item. The placeholder title
// is the video ID for YouTube and the URL tail for direct media.
func NewQueueItem(rawURL, addedBy string, now time.Time) (QueueItem, error) {
	videoID, videoType, err := ClassifyVideoURL(rawURL)
	if err != nil {
		return QueueItem{}, err
	}

	title := videoID
	if videoType == VideoTypeDirect {
		title = urlTail(rawURL)
	}

	return QueueItem{
		ID:       uuid.NewString(),
		VideoID:  videoID,
		VideoURL: strings.TrimSpace(rawURL),
		Title:    title,
		AddedBy:  addedBy,
		AddedAt:  now.UnixMilli(),
	}, nil
}

func urlTail(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimRight(raw, "/")
	if i := strings.LastIndexByte(raw, '/'); i >= 0 {
		return raw[i+1:]
	}
	return raw
}
