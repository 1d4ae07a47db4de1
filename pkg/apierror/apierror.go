// Package apierror defines the structured error kind every user-facing
// failure is raised as, plus the central dispatcher that renders it.
//
// Handlers never format their own error bodies: they return an *Error
// (or any error, which renders as INTERNAL) and the dispatcher in
// Write produces the {code, message, details} envelope with the
// carried HTTP status.
package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Machine codes of the error taxonomy.
const (
	CodeUnknownField              = "UNKNOWN_FIELD"
	CodeFieldNotAllowedForSorting = "FIELD_NOT_ALLOWED_FOR_SORTING"
	CodeInsufficientPermissions   = "INSUFFICIENT_PERMISSIONS"
	CodeInvalidResourceID         = "INVALID_RESOURCE_ID"
	CodeInvalidPaginationOption   = "INVALID_PAGINATION_OPTION"
	CodeAuthenticationRequired    = "AUTHENTICATION_REQUIRED"
	CodeAuthenticationFailed      = "AUTHENTICATION_FAILED"
	CodeInvalidAuthToken          = "INVALID_AUTHENTICATION_TOKEN"
	CodeMimeTypeNotAllowed        = "MIME_TYPE_NOT_ALLOWED"
	CodeNoFile                    = "NO_FILE"
	CodeInvalidRequestData        = "INVALID_REQUEST_DATA"
	CodeInvalidRequestParam       = "INVALID_REQUEST_PARAM"
	CodeMethodNotAllowed          = "METHOD_NOT_ALLOWED"
	CodeWrongMimeType             = "WRONG_MIME_TYPE"
	CodeInvalidEventFilter        = "INVALID_EVENT_FILTER"
	CodeInvalidYouTubeVideoID     = "INVALID_YOUTUBE_VIDEO_ID"
	CodeInternal                  = "INTERNAL"
)

// Error is the single structured failure kind. Status is the HTTP
// status to respond with, Code the machine-readable error code.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]interface{}

	// ClearTokenCookie instructs the dispatcher to expire the auth
	// cookie alongside the error body.
	ClearTokenCookie bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// response is the rendered error envelope.
type response struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details"`
}

// Write renders err as the structured error envelope. Errors that are
// not *Error render as INTERNAL with details suppressed unless dev is
// true; the caller is expected to log those with full detail.
func Write(w http.ResponseWriter, err error, dev bool) {
	apiErr, ok := err.(*Error)
	if !ok {
		apiErr = &Error{
			Status:  http.StatusInternalServerError,
			Code:    CodeInternal,
			Message: "An internal server error occurred.",
		}
		if dev {
			apiErr.Details = map[string]interface{}{"message": err.Error()}
		}
	}

	if apiErr.ClearTokenCookie {
		http.SetCookie(w, &http.Cookie{
			Name:     "token",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	json.NewEncoder(w).Encode(response{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	})
}

// IsInternal reports whether err should be logged as an unexpected
// server-side failure.
func IsInternal(err error) bool {
	apiErr, ok := err.(*Error)
	return !ok || apiErr.Code == CodeInternal
}

// UnknownField signals a requested field that is not declared on the
// entity.
func UnknownField(fieldName string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeUnknownField,
		Message: fmt.Sprintf("There is no field named %s on this model.", fieldName),
		Details: map[string]interface{}{"fieldName": fieldName},
	}
}

// FieldNotAllowedForSorting signals a sortBy referencing a field that
// is not in the sortable allow-list.
func FieldNotAllowedForSorting(fieldName string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeFieldNotAllowedForSorting,
		Message: fmt.Sprintf("You can not sort by the field named %s.", fieldName),
		Details: map[string]interface{}{"fieldName": fieldName},
	}
}

// InsufficientPermissions is the generic permission failure.
func InsufficientPermissions(message string, details map[string]interface{}) *Error {
	if message == "" {
		message = "You are not allowed to do this."
	}
	return &Error{
		Status:  http.StatusForbidden,
		Code:    CodeInsufficientPermissions,
		Message: message,
		Details: details,
	}
}

// FieldAccessNotAllowed is the field-specific permission failure.
func FieldAccessNotAllowed(fieldName string) *Error {
	return InsufficientPermissions(
		fmt.Sprintf("You are not allowed to access the field named %s on this model.", fieldName),
		map[string]interface{}{"fieldName": fieldName},
	)
}

// InvalidResourceID signals an id that does not parse or does not
// exist.
func InvalidResourceID(message string) *Error {
	if message == "" {
		message = "The specified resource ID is invalid."
	}
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidResourceID,
		Message: message,
	}
}

// InvalidPaginationOption signals limit/offset out of bounds.
func InvalidPaginationOption(message string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidPaginationOption,
		Message: message,
	}
}

// AuthenticationRequired signals an operation that needs a principal
// when none is present.
func AuthenticationRequired() *Error {
	return &Error{
		Status:  http.StatusForbidden,
		Code:    CodeAuthenticationRequired,
		Message: "You must be authenticated to use this endpoint.",
	}
}

// AuthenticationFailed signals bad credentials at login.
func AuthenticationFailed() *Error {
	return &Error{
		Status:  http.StatusUnauthorized,
		Code:    CodeAuthenticationFailed,
		Message: "The authentication failed.",
	}
}

// InvalidAuthenticationToken signals a token that is present but
// unrecognized. The response also instructs the client to drop the
// cookie.
func InvalidAuthenticationToken() *Error {
	return &Error{
		Status:           http.StatusUnauthorized,
		Code:             CodeInvalidAuthToken,
		Message:          "The authentication token you provided is invalid.",
		ClearTokenCookie: true,
	}
}

// MimeTypeNotAllowed signals an upload whose sniffed type is not in
// the caller's allow-list.
func MimeTypeNotAllowed(allowed []string, actual string) *Error {
	return &Error{
		Status:  http.StatusUnsupportedMediaType,
		Code:    CodeMimeTypeNotAllowed,
		Message: "The mime type of the uploaded file is not allowed.",
		Details: map[string]interface{}{
			"allowed": allowed,
			"actual":  actual,
		},
	}
}

// NoFile signals an upload request missing the file part.
func NoFile() *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeNoFile,
		Message: "No file in request.",
	}
}

// InvalidRequestData signals a malformed or mistyped request body.
func InvalidRequestData(reason string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidRequestData,
		Message: "The provided request data is invalid.",
		Details: map[string]interface{}{"reason": reason},
	}
}

// InvalidRequestParam signals a query parameter with the wrong type.
func InvalidRequestParam(paramName string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidRequestParam,
		Message: fmt.Sprintf("The request parameter named '%s' has the wrong type.", paramName),
		Details: map[string]interface{}{"paramName": paramName},
	}
}

// MethodNotAllowed signals an operation an entity does not support.
func MethodNotAllowed(message string) *Error {
	return &Error{
		Status:  http.StatusMethodNotAllowed,
		Code:    CodeMethodNotAllowed,
		Message: message,
	}
}

// WrongMimeType signals a referenced file of an unexpected type.
func WrongMimeType(message string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeWrongMimeType,
		Message: message,
	}
}

// InvalidEventFilter signals a calendar filter that does not match the
// supported formats.
func InvalidEventFilter() *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidEventFilter,
		Message: "The specified filter does not match the required format. Allowed: yyyy-mm, yyyy-mm-dd and yyyy-mm-dd:yyyy-mm-dd.",
	}
}

// InvalidYouTubeVideoID signals a video that could not be resolved.
func InvalidYouTubeVideoID() *Error {
	return &Error{
		Status:  http.StatusNotFound,
		Code:    CodeInvalidYouTubeVideoID,
		Message: "The video with the specified ID could not be found on YouTube.",
	}
}

// RoleTooLow builds the standard minimum-role failure with the
// required/actual roles in the details. actual is nil for anonymous
// callers.
func RoleTooLow(required string, actual interface{}) *Error {
	return InsufficientPermissions(
		"You are not allowed to perform this operation for this entity.",
		map[string]interface{}{
			"requiredRole": required,
			"yourRole":     actual,
		},
	)
}
