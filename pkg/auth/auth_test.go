package auth

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openparish/backend/pkg/httputil"
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/storage"
)

func testDB(t *testing.T) *storage.DB {
	t.Helper()
	raw, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	raw.SetMaxOpenConns(1)
	db := storage.Wrap(raw, "sqlite3")
	require.NoError(t, db.CreateSchema(context.Background()))
	return db
}

func insertUser(t *testing.T, db *storage.DB, username, password string, role model.Role) int64 {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	res, err := db.DB.Exec(
		`INSERT INTO users (username, real_name, display_name, position, role, password_hash)
		VALUES (?, ?, ?, ?, ?, ?)`,
		username, "Test User", "Test", "", role.String(), hash,
	)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func sessionServer(t *testing.T, db *storage.DB) *httptest.Server {
	t.Helper()
	r := mux.NewRouter()
	r.Use(Middleware(db, true))
	h := &Handlers{DB: db, Dev: true}
	h.Register(r, "/auth", &httputil.Dispatcher{Dev: true})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	return nil
}

func TestNewTokenIsUnique(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43) // 32 bytes, base64url without padding
	assert.NotContains(t, a, "=")
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "secret"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestPasswordLongInput(t *testing.T) {
	long := strings.Repeat("x", 100)
	hash, err := HashPassword(long)
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, long))
}

func TestLoginSetsCookie(t *testing.T) {
	db := testDB(t)
	insertUser(t, db, "jdoe", "secret", model.RoleEditor)
	srv := sessionServer(t, db)

	resp, err := http.Post(srv.URL+"/auth", "application/json", strings.NewReader(`{"id":"jdoe","password":"secret"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Positive(t, cookie.MaxAge)

	var stored *string
	require.NoError(t, db.DB.QueryRow("SELECT auth_token FROM users WHERE username = 'jdoe'").Scan(&stored))
	require.NotNil(t, stored)
	assert.Equal(t, cookie.Value, *stored)
}

func TestLoginWrongCredentials(t *testing.T) {
	db := testDB(t)
	insertUser(t, db, "jdoe", "secret", model.RoleEditor)
	srv := sessionServer(t, db)

	for _, body := range []string{
		`{"id":"jdoe","password":"wrong"}`,
		`{"id":"nobody","password":"secret"}`,
	} {
		resp, err := http.Post(srv.URL+"/auth", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, body)
	}
}

func TestLoginReusesStoredToken(t *testing.T) {
	db := testDB(t)
	id := insertUser(t, db, "jdoe", "secret", model.RoleEditor)
	existing := "existing-token"
	require.NoError(t, db.SetAuthToken(context.Background(), id, &existing))
	srv := sessionServer(t, db)

	resp, err := http.Post(srv.URL+"/auth", "application/json", strings.NewReader(`{"id":"jdoe","password":"secret"}`))
	require.NoError(t, err)
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.Equal(t, existing, cookie.Value)
}

func TestMeRequiresSession(t *testing.T) {
	db := testDB(t)
	insertUser(t, db, "jdoe", "secret", model.RoleEditor)
	srv := sessionServer(t, db)

	resp, err := http.Get(srv.URL + "/auth/me")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMiddlewareResolvesPrincipal(t *testing.T) {
	db := testDB(t)
	id := insertUser(t, db, "jdoe", "secret", model.RoleAdministrator)
	token := "valid-token"
	require.NoError(t, db.SetAuthToken(context.Background(), id, &token))

	var seen *model.Principal
	handler := Middleware(db, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = model.PrincipalFromContext(r.Context())
	}))

	// Cookie.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	assert.Equal(t, id, seen.ID)
	assert.Equal(t, model.RoleAdministrator, seen.Role)

	// Bearer header.
	seen = nil
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	assert.Equal(t, id, seen.ID)

	// No token proceeds anonymously.
	seen = &model.Principal{}
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Nil(t, seen)
}

func TestMiddlewareRejectsUnknownToken(t *testing.T) {
	db := testDB(t)

	called := false
	handler := Middleware(db, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "stale"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	// The stale cookie gets cleared in the same response.
	cleared := sessionCookie(rec.Result())
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestLogoutClearsToken(t *testing.T) {
	db := testDB(t)
	id := insertUser(t, db, "jdoe", "secret", model.RoleEditor)
	token := "valid-token"
	require.NoError(t, db.SetAuthToken(context.Background(), id, &token))
	srv := sessionServer(t, db)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/auth", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	var stored *string
	require.NoError(t, db.DB.QueryRow("SELECT auth_token FROM users WHERE id = ?", id).Scan(&stored))
	assert.Nil(t, stored)
}
