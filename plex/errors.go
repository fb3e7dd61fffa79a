package plex

import (
	"errors"
	"fmt"
)

// ErrUnavailable means Plex could not answer: transport failure, timeout,
// unexpected status or a body that is not a MediaContainer. It never means
// "not in the library".
var ErrUnavailable = errors.New("plex unavailable")

// APIError represents a non-200 reply from Plex
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("plex API error: status %d", e.StatusCode)
}

// Unwrap lets errors.Is match ErrUnavailable
func (e *APIError) Unwrap() error {
	return ErrUnavailable
}

// IsUnauthorized checks if the error indicates a bad or missing token
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}
