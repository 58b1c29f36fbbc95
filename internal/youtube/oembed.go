// Package youtube talks to the external YouTube surfaces we depend on:
// the public oEmbed endpoint for video titles and a rotating set of
// Invidious instances for comment threads.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultOEmbedEndpoint = "https://www.youtube.com/oembed"

// OEmbedClient resolves video titles. Lookups are best-effort; callers keep
// their placeholder title on any failure.
type OEmbedClient struct {
	endpoint string
	http     *http.Client
}

// NewOEmbedClient creates a client against the public oEmbed endpoint.
func NewOEmbedClient() *OEmbedClient {
	return &OEmbedClient{
		endpoint: defaultOEmbedEndpoint,
		http:     &http.Client{Timeout: 5 * time.Second},
	}
}

// NewOEmbedClientWithEndpoint is used by tests to point at a stub server.
func NewOEmbedClientWithEndpoint(endpoint string) *OEmbedClient {
	c := NewOEmbedClient()
	c.endpoint = endpoint
	return c
}

type oembedResponse struct {
	Title string `json:"title"`
}

// Title returns the display title for a YouTube video ID.
func (c *OEmbedClient) Title(ctx context.Context, videoID string) (string, error) {
	q := url.Values{}
	q.Set("url", "https://www.youtube.com/watch?v="+videoID)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oembed returned %d for %s", resp.StatusCode, videoID)
	}

	var body oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Title == "" {
		return "", fmt.Errorf("oembed returned empty title for %s", videoID)
	}
	return body.Title, nil
}
