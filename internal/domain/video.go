package domain

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// VideoType classifies how clients should embed the current video.
type VideoType string

const (
	VideoTypeNone    VideoType = "none"
	VideoTypeYouTube VideoType = "youtube"
	VideoTypeDirect  VideoType = "direct"
)

// VideoState is the canonical playback state for one room. The position is
// stored as an anchor: (AnchorPosition, AnchorWallTime) plus IsPlaying and
// Rate fully determine the position at any later instant. Mutated only by
// the room's dispatcher.
type VideoState struct {
	VideoID        string
	VideoURL       string
	VideoType      VideoType
	IsPlaying      bool
	AnchorPosition float64 // seconds
	AnchorWallTime time.Time
	Rate           float64
	Seq            uint64
}

// VideoSnapshot is what goes on the wire: the position is computed at
// emission time so clients never do cross-clock arithmetic.
type VideoSnapshot struct {
	VideoID     string    `json:"videoId"`
	VideoURL    string    `json:"videoUrl"`
	VideoType   VideoType `json:"videoType"`
	IsPlaying   bool      `json:"isPlaying"`
	CurrentTime float64   `json:"currentTime"`
	Rate        float64   `json:"rate"`
	Seq         uint64    `json:"seq"`
	Timestamp   int64     `json:"timestamp"` // emission wall time, unix ms
}

// NewVideoState returns the empty state a fresh room starts with.
func NewVideoState() *VideoState {
	return &VideoState{
		VideoType: VideoTypeNone,
		Rate:      1.0,
	}
}

// PositionAt computes the effective playback position at wall-clock t.
func (v *VideoState) PositionAt(t time.Time) float64 {
	if !v.IsPlaying {
		return v.AnchorPosition
	}
	elapsed := t.Sub(v.AnchorWallTime).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return v.AnchorPosition + elapsed*v.Rate
}

// Snapshot stamps the current state at wall-clock now.
func (v *VideoState) Snapshot(now time.Time) VideoSnapshot {
	return VideoSnapshot{
		VideoID:     v.VideoID,
		VideoURL:    v.VideoURL,
		VideoType:   v.VideoType,
		IsPlaying:   v.IsPlaying,
		CurrentTime: v.PositionAt(now),
		Rate:        v.Rate,
		Seq:         v.Seq,
		Timestamp:   now.UnixMilli(),
	}
}

// Load replaces the current video. Playback starts from zero immediately.
func (v *VideoState) Load(videoID, videoURL string, videoType VideoType, now time.Time) {
	v.VideoID = videoID
	v.VideoURL = videoURL
	v.VideoType = videoType
	v.IsPlaying = true
	v.AnchorPosition = 0
	v.AnchorWallTime = now
	v.Rate = 1.0
	v.Seq++
}

// Play resumes playback. Returns false when already playing: clients mirror
// the shared state into their media element, which then echoes a native play
// event back at us; applying it would move the anchor backwards.
func (v *VideoState) Play(now time.Time) bool {
	if v.IsPlaying {
		return false
	}
	v.IsPlaying = true
	v.AnchorWallTime = now
	v.Seq++
	return true
}

// Pause freezes playback at the client-reported position. Returns false when
// already paused (echo suppression, same as Play).
func (v *VideoState) Pause(position float64, now time.Time) bool {
	if !v.IsPlaying {
		return false
	}
	v.IsPlaying = false
	v.AnchorPosition = clampPosition(position)
	v.AnchorWallTime = now
	v.Seq++
	return true
}

// Seek always re-anchors: unlike play/pause echoes it carries new information.
func (v *VideoState) Seek(position float64, now time.Time) {
	v.AnchorPosition = clampPosition(position)
	v.AnchorWallTime = now
	v.Seq++
}

// SetRate re-anchors at the current effective position before switching rate
// so the instantaneous position stays continuous.
func (v *VideoState) SetRate(rate float64, now time.Time) error {
	if rate <= 0 || rate > 16 {
		return ErrInvalidRate
	}
	v.AnchorPosition = v.PositionAt(now)
	v.AnchorWallTime = now
	v.Rate = rate
	v.Seq++
	return nil
}

func clampPosition(p float64) float64 {
	if p != p || p < 0 { // NaN or negative
		return 0
	}
	return p
}

var youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var directExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".ogg":  true,
	".mov":  true,
	".mkv":  true,
	".avi":  true,
	".m3u8": true,
}

// ClassifyVideoURL validates a raw URL and classifies it as YouTube (with the
// extracted 11-char video ID) or a direct media URL. Anything else is
// ErrInvalidVideoURL.
func ClassifyVideoURL(raw string) (videoID string, videoType VideoType, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", VideoTypeNone, ErrInvalidVideoURL
	}

	u, parseErr := url.Parse(raw)
	if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", VideoTypeNone, ErrInvalidVideoURL
	}

	if id := extractYouTubeID(u); id != "" {
		return id, VideoTypeYouTube, nil
	}

	lowerPath := strings.ToLower(u.Path)
	for ext := range directExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return "", VideoTypeDirect, nil
		}
	}
	// HLS playlists sometimes carry the format in the query instead
	// (e.g. ...?playlist=live.m3u8).
	if strings.Contains(strings.ToLower(u.RawQuery), ".m3u8") {
		return "", VideoTypeDirect, nil
	}

	return "", VideoTypeNone, ErrInvalidVideoURL
}

// extractYouTubeID handles the common URL shapes: watch?v=, youtu.be/,
// /embed/, /shorts/, /live/ and /v/.
func extractYouTubeID(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.TrimPrefix(host, "m.")

	candidate := ""
	switch {
	case host == "youtu.be":
		candidate = strings.Trim(u.Path, "/")
	case host == "youtube.com" || host == "youtube-nocookie.com" || host == "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			candidate = v
			break
		}
		for _, prefix := range []string{"/embed/", "/shorts/", "/live/", "/v/"} {
			if strings.HasPrefix(u.Path, prefix) {
				rest := strings.TrimPrefix(u.Path, prefix)
				if i := strings.IndexByte(rest, '/'); i >= 0 {
					rest = rest[:i]
				}
				candidate = rest
				break
			}
		}
	}

	if youtubeIDPattern.MatchString(candidate) {
		return candidate
	}
	return ""
}
