package errors

import (
	"errors"
	"fmt"
)

// Sentinels for domain errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation error")
	ErrUnavailable   = errors.New("service unavailable")
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// Is reports whether err is one of the sentinels.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Wrap adds context to an error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Join(errors.New(message), err)
}

// ExternalServiceError tags a failure with the upstream provider it came
// from, so callers can tell an AI-platform fault from a telephony fault
// without inspecting transport internals.
type ExternalServiceError struct {
	Provider string
	Endpoint string
	Status   int
	Detail   string
	Err      error
}

func (e *ExternalServiceError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Detail, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Detail)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// AsExternal unwraps err to an ExternalServiceError if one is present.
func AsExternal(err error) (*ExternalServiceError, bool) {
	var ext *ExternalServiceError
	if errors.As(err, &ext) {
		return ext, true
	}
	return nil, false
}
