package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/model"
	"github.com/openparish/backend/pkg/storage"
)

// CookieName is the session cookie carrying the token.
const CookieName = "token"

// TokenFromRequest extracts the session token from the request: the
// session cookie first, then an Authorization: Bearer header. Empty
// means anonymous.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// Middleware resolves the request's session token to a principal and
// stores it in the request context. Requests without a token proceed
// anonymously; a token that matches no user is rejected and the stale
// cookie cleared, so clients recover without manual intervention.
func Middleware(db *storage.DB, dev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := db.PrincipalByToken(r.Context(), token)
			if errors.Is(err, storage.ErrNotFound) {
				apierror.Write(w, apierror.InvalidAuthenticationToken(), dev)
				return
			}
			if err != nil {
				apierror.Write(w, err, dev)
				return
			}

			next.ServeHTTP(w, r.WithContext(model.WithPrincipal(r.Context(), principal)))
		})
	}
}
