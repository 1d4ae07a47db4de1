package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "snippet", r.URL.Query().Get("part"))
		assert.Equal(t, "abc123", r.URL.Query().Get("id"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":"abc123","snippet":{"title":"Sunday Service","publishedAt":"2026-03-01T10:00:00Z"}}]}`))
	}))
	defer srv.Close()

	client := NewAPIClient("test-key")
	client.base = srv.URL
	video, err := client.VideoByID(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", video.ID)
	assert.Equal(t, "Sunday Service", video.Title)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), video.PublishedAt)
}

func TestVideoByIDNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	client := NewAPIClient("test-key")
	client.base = srv.URL
	_, err := client.VideoByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrVideoNotFound)
}
