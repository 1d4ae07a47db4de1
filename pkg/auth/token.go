// Package auth implements token-based session authentication: the
// login/logout endpoints, the middleware resolving session tokens to
// principals, and password hashing.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// TokenLength is the number of random bytes in a session token
// (32 bytes = 256 bits).
const TokenLength = 32

// NewToken generates a session token: base64url, no padding, safe to
// carry in cookies and Authorization headers.
func NewToken() (string, error) {
	buf := make([]byte, TokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
