package entities

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/httputil"
	"github.com/openparish/backend/pkg/model"
)

// contentIDs are the fixed keys of the editable text snippets embedded
// in the website. The file-flagged ones hold a content hash instead of
// HTML and are reachable through the /files/from-content redirect.
var contentIDs = map[string]struct{ file bool }{
	"HOMEPAGE_INTRODUCTION": {},
	"HOMEPAGE_TOP":          {},
	"GEMEINDE":              {},
	"PFARRBRIEF":            {file: true},
	"MESSDIENERPLAN":        {file: true},
	"IMPRESSUM":             {},
	"PRIVACY_POLICY":        {},
	"ADMIN_NEWS":            {},
	"MEDIATHEK":             {},
	"LIVE_VIDEO_ID":         {},
}

func (reg *Registry) registerContents(api *mux.Router) {
	api.HandleFunc("/contents/{id}", reg.Dispatcher.Handle(reg.getContent)).Methods(http.MethodGet)
	api.HandleFunc("/contents/{id}", reg.Dispatcher.Handle(reg.putContent)).Methods(http.MethodPut)
}

// RegisterFileRedirects mounts GET /files/from-content/{id} on the
// root router. It must be mounted before the generic /files/{id}
// routes so the literal segment wins.
func (reg *Registry) RegisterFileRedirects(r *mux.Router) {
	r.HandleFunc("/files/from-content/{id}", reg.Dispatcher.Handle(reg.fileFromContent)).Methods(http.MethodGet)
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/")
}

func (reg *Registry) getContent(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)["id"]
	json := wantsJSON(r)

	if _, ok := contentIDs[id]; !ok {
		if json {
			return httputil.WriteJSON(w, http.StatusNotFound, map[string]interface{}{"data": nil})
		}
		w.WriteHeader(http.StatusNotFound)
		return nil
	}

	var content string
	err := reg.DB.QueryRowContext(r.Context(),
		reg.DB.Rebind("SELECT content FROM contents WHERE id = ?"), id,
	).Scan(&content)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if json {
		return httputil.WriteSuccess(w, map[string]interface{}{"data": content})
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err = io.WriteString(w, content)
	return err
}

func (reg *Registry) putContent(w http.ResponseWriter, r *http.Request) error {
	principal := model.PrincipalFromContext(r.Context())
	editor := model.RoleEditor
	if !model.HasRole(principal, &editor) {
		return apierror.InsufficientPermissions("You are not allowed to modify contents.", nil)
	}

	id := mux.Vars(r)["id"]
	if _, ok := contentIDs[id]; !ok {
		return apierror.InvalidResourceID("There is no content with this ID.")
	}
	admin := model.RoleAdministrator
	if id == "ADMIN_NEWS" && !model.HasRole(principal, &admin) {
		return apierror.InsufficientPermissions("You are not allowed to edit this content.", nil)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return apierror.InvalidRequestData(err.Error())
	}

	err = reg.DB.InTx(r.Context(), func(tx *sql.Tx) error {
		result, err := tx.ExecContext(r.Context(),
			reg.DB.Rebind("UPDATE contents SET content = ? WHERE id = ?"), string(body), id)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			_, err = tx.ExecContext(r.Context(),
				reg.DB.Rebind("INSERT INTO contents (id, content) VALUES (?, ?)"), id, string(body))
		}
		return err
	})
	if err != nil {
		return err
	}
	httputil.WriteNoContent(w)
	return nil
}

// fileFromContent redirects a readable name like "pfarrbrief" to the
// current content hash stored under the matching file-flagged key.
func (reg *Registry) fileFromContent(w http.ResponseWriter, r *http.Request) error {
	slug := mux.Vars(r)["id"]
	key := strings.ToUpper(strings.ReplaceAll(slug, "-", "_"))

	invalid := true
	if meta, ok := contentIDs[key]; ok && meta.file {
		invalid = false
		var hash string
		err := reg.DB.QueryRowContext(r.Context(),
			reg.DB.Rebind("SELECT content FROM contents WHERE id = ?"), key,
		).Scan(&hash)
		if err == nil {
			http.Redirect(w, r, "/files/"+hash, http.StatusFound)
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}

	query := url.Values{}
	query.Set("invalid", strconv.FormatBool(invalid))
	query.Set("content", slug)
	http.Redirect(w, r, "/file404?"+query.Encode(), http.StatusFound)
	return nil
}
