// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *model.Principal (nil for anonymous requests)
	// Set by: auth.Middleware (pkg/auth/middleware.go)
	// Required by: resource router, file store, auth handlers
	PrincipalKey Key = "principal"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logging middleware
	RequestIDKey Key = "request_id"
)
