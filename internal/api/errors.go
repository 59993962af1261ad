package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes attached to APIError, mirrored from the backend's vocabulary.
const (
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeValidation   = "validation_error"
	ErrCodeServer       = "server_error"
	ErrCodeTransport    = "transport_error"
)

// APIError is a non-2xx backend response converted into a typed error.
// Body carries the server's raw response text, or the status line when the
// body was empty, so business errors can be surfaced to the user verbatim.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// IsAuth reports whether the error is an authentication failure (401/403).
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// AsAPIError unwraps err into an *APIError if it is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsAuthError reports whether err is a 401/403 backend response.
func IsAuthError(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.IsAuth()
}
