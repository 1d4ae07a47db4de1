package files

import (
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gorilla/mux"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/httputil"
	"github.com/openparish/backend/pkg/model"
)

// maxUploadMemory bounds the multipart parts held in memory; larger
// parts spill to disk before staging.
const maxUploadMemory = 32 << 20

// Content at a given hash never changes, so clients may cache for a
// year without revalidation.
const cacheControl = "immutable, public, max-age=31557600"

// notFoundPage is where unknown content ids are sent.
const notFoundPage = "/file404"

// Handlers exposes the file store over HTTP.
type Handlers struct {
	Store *Store
}

// Register mounts POST /files, GET /files/{id} and GET /files/{id}/{tail}.
func (h *Handlers) Register(r *mux.Router, d *httputil.Dispatcher) {
	r.HandleFunc("/files", d.Handle(h.upload)).Methods(http.MethodPost)
	r.HandleFunc("/files/{id}", d.Handle(h.get)).Methods(http.MethodGet)
	r.HandleFunc("/files/{id}/{tail:.*}", d.Handle(h.get)).Methods(http.MethodGet)
}

func (h *Handlers) upload(w http.ResponseWriter, r *http.Request) error {
	principal := model.PrincipalFromContext(r.Context())
	if principal == nil {
		return apierror.AuthenticationRequired()
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return apierror.NoFile()
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		return apierror.NoFile()
	}
	defer part.Close()

	var allowed []string
	if raw := r.URL.Query().Get("allowedMimeTypes"); raw != "" {
		allowed = strings.Split(raw, ";")
	}

	result, err := h.Store.Save(r.Context(), part, header.Filename, allowed, principal)
	if err != nil {
		return err
	}

	status := http.StatusOK
	if result.IsNew {
		status = http.StatusCreated
	}
	return httputil.WriteJSON(w, status, result)
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)["id"]

	record, err := h.Store.Record(r.Context(), id)
	if IsNotFound(err) {
		http.Redirect(w, r, notFoundPage+"?id="+url.QueryEscape(id), http.StatusFound)
		return nil
	}
	if err != nil {
		return err
	}

	canonical := canonicalPath(record.ID, record.Title, record.MimeType)
	// Compare in escaped form; the canonical path carries an escaped
	// title segment.
	if r.URL.EscapedPath() != canonical {
		http.Redirect(w, r, canonical, http.StatusFound)
		return nil
	}

	f, err := os.Open(h.Store.Path(id))
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	contentType := "application/octet-stream"
	if record.MimeType != nil {
		contentType = *record.MimeType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", cacheControl)
	http.ServeContent(w, r, "", info.ModTime(), f)
	return nil
}

// canonicalPath is the one URL a file is served under. PDF links get a
// readable filename tail so that downloads and link previews carry the
// document title; everything else is addressed by bare hash.
func canonicalPath(id string, title, mimeType *string) string {
	if mimeType != nil && *mimeType == "application/pdf" && title != nil && *title != "" {
		return "/files/" + id + "/" + url.PathEscape(*title) + ".pdf"
	}
	return "/files/" + id
}
