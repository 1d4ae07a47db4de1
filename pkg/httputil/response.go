// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/openparish/backend/pkg/apierror"
	"github.com/openparish/backend/pkg/observability"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// HandlerFunc is an HTTP handler that reports failures as errors
// instead of writing its own error body.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Dispatcher adapts HandlerFuncs into http.HandlerFuncs, rendering any
// returned error through the central error taxonomy. Unexpected errors
// are logged with full detail and reduced to INTERNAL for the caller
// unless running in development mode.
type Dispatcher struct {
	Logger *observability.Logger
	Dev    bool
}

// Handle wraps fn with central error dispatch.
func (d *Dispatcher) Handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		if apierror.IsInternal(err) && d.Logger != nil {
			d.Logger.WithError(err).
				WithField("method", r.Method).
				WithField("path", r.URL.Path).
				Error("request failed")
		}
		apierror.Write(w, err, d.Dev)
	}
}
