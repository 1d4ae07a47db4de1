package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openparish/backend/pkg/auth"
	"github.com/openparish/backend/pkg/config"
	"github.com/openparish/backend/pkg/files"
	"github.com/openparish/backend/pkg/httputil"
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/observability"
	"github.com/openparish/backend/pkg/storage"
	"github.com/openparish/backend/pkg/youtube"
)

type noopYouTube struct{}

func (noopYouTube) VideoByID(ctx context.Context, id string) (*youtube.Video, error) {
	return nil, youtube.ErrVideoNotFound
}

func newTestServer(t *testing.T) (*httptest.Server, *storage.DB) {
	t.Helper()
	raw, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	raw.SetMaxOpenConns(1)
	db := storage.Wrap(raw, "sqlite3")
	require.NoError(t, db.CreateSchema(context.Background()))

	cfg := &config.Config{Dev: true, MetricsEnabled: true, DataDir: t.TempDir()}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(nil)
	store := &files.Store{DB: db, DataDir: cfg.DataDir, Metrics: metrics, Logger: logger}
	require.NoError(t, store.EnsureDirs())

	server := NewServer(cfg, db, logger, metrics, store, noopYouTube{})
	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)
	return srv, db
}

func createUser(t *testing.T, db *storage.DB, username, password string, role model.Role) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	_, err = db.DB.Exec(
		`INSERT INTO users (username, real_name, display_name, position, role, password_hash)
		VALUES (?, ?, ?, '', ?, ?)`,
		username, username, username, role.String(), hash,
	)
	require.NoError(t, err)
}

func login(t *testing.T, srv *httptest.Server, username, password string) *http.Client {
	t.Helper()
	client := srv.Client()
	jar := newCookieClient(t, srv, client)
	body := fmt.Sprintf(`{"id":%q,"password":%q}`, username, password)
	resp, err := jar.Post(srv.URL+"/api/auth", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	return jar
}

func newCookieClient(t *testing.T, srv *httptest.Server, base *http.Client) *http.Client {
	t.Helper()
	jarClient := *base
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	jarClient.Jar = jar
	return &jarClient
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	// Generate one request so a counter exists.
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestLoginAndAuthenticatedWrite(t *testing.T) {
	srv, db := newTestServer(t)
	createUser(t, db, "editor", "secret", model.RoleEditor)

	// Anonymous writes are rejected.
	resp, err := http.Post(srv.URL+"/api/churches", "application/json", strings.NewReader(`{"title":"t","googleMapsID":""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	client := login(t, srv, "editor", "secret")
	resp, err = client.Post(srv.URL+"/api/churches", "application/json", strings.NewReader(`{"title":"St. Marien","googleMapsID":""}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/churches")
	require.NoError(t, err)
	defer resp.Body.Close()
	var listing struct {
		Items   []map[string]interface{} `json:"items"`
		HasMore bool                     `json:"hasMore"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	require.Len(t, listing.Items, 1)
	assert.Equal(t, "St. Marien", listing.Items[0]["title"])
}

func TestLoginRouteLocation(t *testing.T) {
	srv, _ := newTestServer(t)

	// Sessions live at POST /api/auth itself, not a /login subpath.
	resp, err := http.Post(srv.URL+"/api/auth", "application/json", strings.NewReader(`{"id":"nobody","password":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/auth/login", "application/json", strings.NewReader(`{"id":"nobody","password":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBearerTokenAuth(t *testing.T) {
	srv, db := newTestServer(t)
	createUser(t, db, "editor", "secret", model.RoleEditor)
	login(t, srv, "editor", "secret")

	var token string
	require.NoError(t, db.DB.QueryRow("SELECT auth_token FROM users WHERE username = 'editor'").Scan(&token))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStaleTokenRejectedEverywhere(t *testing.T) {
	srv, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/churches", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer bogus-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUploadAndServeFile(t *testing.T) {
	srv, db := newTestServer(t)
	createUser(t, db, "editor", "secret", model.RoleEditor)
	client := login(t, srv, "editor", "secret")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "newsletter.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := client.Post(srv.URL+"/files", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.ID, 64)

	// Served publicly at its canonical PDF URL.
	resp, err = http.Get(srv.URL + "/files/" + result.ID + "/newsletter.pdf")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
}

func TestFileFromContentRoutePrecedence(t *testing.T) {
	srv, db := newTestServer(t)
	hash := strings.Repeat("a", 64)
	_, err := db.DB.Exec(`INSERT INTO contents (id, content) VALUES ('PFARRBRIEF', ?)`, hash)
	require.NoError(t, err)

	client := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(srv.URL + "/files/from-content/pfarrbrief")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/files/"+hash, resp.Header.Get("Location"))
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestPanicRecovered(t *testing.T) {
	// The recovery middleware converts panics into INTERNAL errors
	// without killing the connection.
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler = httputil.RecoveryMiddleware(logger, false)(handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL")
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestServiceDateSweepVisibleThroughAPI(t *testing.T) {
	srv, db := newTestServer(t)
	_, err := db.DB.Exec(`INSERT INTO churches (id, title, google_maps_id) VALUES (1, 'c', '')`)
	require.NoError(t, err)
	_, err = db.DB.Exec(`INSERT INTO church_service_dates (date, church, description) VALUES (?, 1, '')`,
		storage.FormatTime(time.Now().Add(-3*time.Hour)))
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/church-service-dates")
	require.NoError(t, err)
	defer resp.Body.Close()
	var listing struct {
		Items []interface{} `json:"items"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	assert.Empty(t, listing.Items)
}
