package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/httputil"
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/storage"
)

const sessionDuration = 30 * 24 * time.Hour

// Handlers exposes the session endpoints.
type Handlers struct {
	DB *storage.DB

	// Dev relaxes cookie attributes for plain-HTTP local development.
	Dev bool

	// Domain scopes the session cookie outside development.
	Domain string
}

// Register mounts the session endpoints: POST {prefix} (login),
// DELETE {prefix} (logout) and GET {prefix}/me.
func (h *Handlers) Register(r *mux.Router, prefix string, d *httputil.Dispatcher) {
	r.HandleFunc(prefix, d.Handle(h.login)).Methods(http.MethodPost)
	r.HandleFunc(prefix, d.Handle(h.logout)).Methods(http.MethodDelete)
	r.HandleFunc(prefix+"/me", d.Handle(h.me)).Methods(http.MethodGet)
}

type credentials struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) error {
	var creds credentials
	if err := httputil.DecodeJSON(r, &creds); err != nil {
		return err
	}

	user, err := h.DB.UserByUsername(r.Context(), creds.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return apierror.AuthenticationFailed()
	}
	if err != nil {
		return err
	}
	if !CheckPassword(user.PasswordHash, creds.Password) {
		return apierror.AuthenticationFailed()
	}

	// Reuse the stored token so a login on a second device does not
	// invalidate the first; clearing the column logs out everywhere.
	token := ""
	if user.AuthToken != nil {
		token = *user.AuthToken
	} else {
		token, err = NewToken()
		if err != nil {
			return err
		}
		if err := h.DB.SetAuthToken(r.Context(), user.ID, &token); err != nil {
			return err
		}
	}

	http.SetCookie(w, h.sessionCookie(token, int(sessionDuration.Seconds())))
	httputil.WriteNoContent(w)
	return nil
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) error {
	if principal := model.PrincipalFromContext(r.Context()); principal != nil {
		if err := h.DB.SetAuthToken(r.Context(), principal.ID, nil); err != nil {
			return err
		}
	}
	http.SetCookie(w, h.sessionCookie("", -1))
	httputil.WriteNoContent(w)
	return nil
}

func (h *Handlers) me(w http.ResponseWriter, r *http.Request) error {
	principal := model.PrincipalFromContext(r.Context())
	if principal == nil {
		return apierror.AuthenticationRequired()
	}
	return httputil.WriteSuccess(w, map[string]interface{}{"id": principal.ID})
}

func (h *Handlers) sessionCookie(value string, maxAge int) *http.Cookie {
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	if !h.Dev {
		cookie.Secure = true
		cookie.Domain = h.Domain
	}
	return cookie
}
