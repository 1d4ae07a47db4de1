package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteStructuredError(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, UnknownField("bogus"), false)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decodeBody(t, rec)
	assert.Equal(t, "UNKNOWN_FIELD", body["code"])
	assert.Equal(t, map[string]interface{}{"fieldName": "bogus"}, body["details"])
}

func TestWriteUnexpectedErrorHidesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, errors.New("db exploded"), false)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "INTERNAL", body["code"])
	assert.Nil(t, body["details"])
}

func TestWriteUnexpectedErrorShowsDetailsInDev(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, errors.New("db exploded"), true)

	body := decodeBody(t, rec)
	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "db exploded", details["message"])
}

func TestInvalidTokenClearsCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, InvalidAuthenticationToken(), false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.Equal(t, "", cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestMimeTypeNotAllowedDetails(t *testing.T) {
	err := MimeTypeNotAllowed([]string{"image/png"}, "image/jpeg")
	assert.Equal(t, http.StatusUnsupportedMediaType, err.Status)
	assert.Equal(t, "image/jpeg", err.Details["actual"])
}

func TestIsInternal(t *testing.T) {
	assert.True(t, IsInternal(errors.New("boom")))
	assert.False(t, IsInternal(NoFile()))
}
