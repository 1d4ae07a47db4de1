package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/openparish/backend/pkg/apierror"
)

// DecodeJSON decodes the request body into dest. Unknown fields and
// type mismatches are rejected with INVALID_REQUEST_DATA.
func DecodeJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return apierror.InvalidRequestData(err.Error())
	}
	return nil
}

// QueryString returns the named query parameter and whether it was
// present.
func QueryString(r *http.Request, name string) (string, bool) {
	if !r.URL.Query().Has(name) {
		return "", false
	}
	return r.URL.Query().Get(name), true
}

// QueryInt parses an integer query parameter, returning def when the
// parameter is absent and INVALID_REQUEST_PARAM when it does not parse.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw, ok := QueryString(r, name)
	if !ok {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierror.InvalidRequestParam(name)
	}
	return val, nil
}

// QueryBool parses a boolean query parameter, returning def when the
// parameter is absent and INVALID_REQUEST_PARAM when it does not parse.
func QueryBool(r *http.Request, name string, def bool) (bool, error) {
	raw, ok := QueryString(r, name)
	if !ok {
		return def, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apierror.InvalidRequestParam(name)
	}
	return val, nil
}

const (
	defaultLimit = 10
	maxLimit     = 50
)

// LimitAndOffset parses the pagination parameters of a list request.
// The limit must be between 1 and 50 (default 10) and the offset
// non-negative (default 0).
func LimitAndOffset(r *http.Request) (limit, offset int, err error) {
	limit, err = QueryInt(r, "limit", defaultLimit)
	if err != nil {
		return 0, 0, err
	}
	offset, err = QueryInt(r, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	if limit < 1 || limit > maxLimit {
		return 0, 0, apierror.InvalidPaginationOption("The limit must be between 1 and 50")
	}
	if offset < 0 {
		return 0, 0, apierror.InvalidPaginationOption("The offset must be positive.")
	}
	return limit, offset, nil
}
