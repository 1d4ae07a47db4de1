// Package youtube is a minimal YouTube Data API v3 client: just enough
// to resolve a video id to its title and publication time when a video
// entry is created.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const apiBase = "https://www.googleapis.com/youtube/v3"

// Video is the subset of snippet data the backend stores.
type Video struct {
	ID          string
	Title       string
	PublishedAt time.Time
}

// Client resolves video metadata. Implementations must return
// ErrVideoNotFound for ids the API does not know.
type Client interface {
	VideoByID(ctx context.Context, id string) (*Video, error)
}

// ErrVideoNotFound is returned for ids the API does not know.
var ErrVideoNotFound = fmt.Errorf("youtube: video not found")

// APIClient talks to the real Data API.
type APIClient struct {
	Key        string
	HTTPClient *http.Client

	// base is overridden in tests.
	base string
}

// NewAPIClient returns a client using the given API key.
func NewAPIClient(key string) *APIClient {
	return &APIClient{
		Key:        key,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		base:       apiBase,
	}
}

type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string    `json:"title"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

func (c *APIClient) VideoByID(ctx context.Context, id string) (*Video, error) {
	query := url.Values{
		"part": {"snippet"},
		"id":   {id},
		"key":  {c.Key},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/videos?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube request: unexpected status %d", resp.StatusCode)
	}

	var list videoListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("youtube response: %w", err)
	}
	if len(list.Items) == 0 {
		return nil, ErrVideoNotFound
	}
	item := list.Items[0]
	return &Video{ID: item.ID, Title: item.Snippet.Title, PublishedAt: item.Snippet.PublishedAt}, nil
}
