package requests

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("request not found")
	ErrConflict              = errors.New("conflict")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrRejected              = errors.New("rejected by acquisition service")
	ErrInvalidInput          = errors.New("invalid input")
)

// Conflict reasons
const (
	ReasonAvailable = "already on library"
	ReasonRequested = "already requested"
)

// ConflictError explains why a create was refused
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// RejectedError carries the raw reply of an acquisition service that
// declined a call.
type RejectedError struct {
	Op    string
	Reply json.RawMessage
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, ErrRejected)
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDependencyUnavailable, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
