package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/parlorhq/parlor/internal/metrics"
)

const (
	commentsCacheTTL    = 5 * time.Minute
	commentsMaxBodySize = 2 << 20 // 2MB, comment pages are far smaller
)

// ErrAllInstancesFailed means every upstream instance was down or tripped.
var ErrAllInstancesFailed = errors.New("all comment instances failed")

type cacheEntry struct {
	body      []byte
	fetchedAt time.Time
}

// CommentsClient proxies comment threads from a rotating list of Invidious
// instances. Each instance sits behind its own circuit breaker so one dead
// upstream stops eating a request timeout per call, and responses are cached
// for five minutes keyed by the full query.
type CommentsClient struct {
	instances []string
	breakers  []*gobreaker.CircuitBreaker
	next      atomic.Uint64
	http      *http.Client

	mu    sync.RWMutex
	cache map[string]cacheEntry

	logger *slog.Logger
}

// NewCommentsClient builds the proxy over the configured instance list.
func NewCommentsClient(instances []string, logger *slog.Logger) *CommentsClient {
	breakers := make([]*gobreaker.CircuitBreaker, len(instances))
	for i, inst := range instances {
		breakers[i] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    inst,
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		})
	}
	return &CommentsClient{
		instances: instances,
		breakers:  breakers,
		http:      &http.Client{Timeout: 5 * time.Second},
		cache:     make(map[string]cacheEntry),
		logger:    logger.With("component", "comments"),
	}
}

// Fetch returns the raw comments JSON for a video, trying instances in
// rotation until one answers.
func (c *CommentsClient) Fetch(ctx context.Context, videoID, sortBy, continuation string) ([]byte, error) {
	if len(c.instances) == 0 {
		return nil, ErrAllInstancesFailed
	}

	key := cacheKey(videoID, sortBy, continuation)
	if body, ok := c.cached(key); ok {
		metrics.CommentsCacheHits.Inc()
		return body, nil
	}

	start := int(c.next.Add(1) - 1)
	var lastErr error = ErrAllInstancesFailed
	for i := 0; i < len(c.instances); i++ {
		idx := (start + i) % len(c.instances)
		body, err := c.fetchFrom(ctx, idx, videoID, sortBy, continuation)
		if err != nil {
			metrics.CommentsUpstreamErrors.Inc()
			c.logger.Warn("comment fetch failed", "instance", c.instances[idx], "video_id", videoID, "error", err)
			lastErr = err
			continue
		}
		c.store(key, body)
		return body, nil
	}
	return nil, lastErr
}

func (c *CommentsClient) fetchFrom(ctx context.Context, idx int, videoID, sortBy, continuation string) ([]byte, error) {
	body, err := c.breakers[idx].Execute(func() (interface{}, error) {
		u := fmt.Sprintf("%s/api/v1/comments/%s", c.instances[idx], url.PathEscape(videoID))
		q := url.Values{}
		if sortBy != "" {
			q.Set("sort_by", sortBy)
		}
		if continuation != "" {
			q.Set("continuation", continuation)
		}
		if encoded := q.Encode(); encoded != "" {
			u += "?" + encoded
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("instance returned %d", resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, commentsMaxBodySize))
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

func (c *CommentsClient) cached(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || time.Since(entry.fetchedAt) > commentsCacheTTL {
		return nil, false
	}
	return entry.body, true
}

func (c *CommentsClient) store(key string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Opportunistic sweep keeps the cache from accumulating dead keys.
	for k, e := range c.cache {
		if time.Since(e.fetchedAt) > commentsCacheTTL {
			delete(c.cache, k)
		}
	}
	c.cache[key] = cacheEntry{body: body, fetchedAt: time.Now()}
}

func cacheKey(videoID, sortBy, continuation string) string {
	return videoID + "|" + sortBy + "|" + continuation
}
