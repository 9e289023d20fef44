package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies every way an outbound request can fail. The set is
// closed: callers switch on it without a default-that-means-unknown.
type ErrorKind string

const (
	KindTimeout               ErrorKind = "timeout"
	KindConnectionFailure     ErrorKind = "connection_failure"
	KindAuthenticationFailure ErrorKind = "authentication_failure"
	KindRateLimited           ErrorKind = "rate_limited"
	KindClientError           ErrorKind = "client_error"
	KindServerError           ErrorKind = "server_error"
	KindMalformedResponse     ErrorKind = "malformed_response"
)

// Retryable reports whether the kind is worth another attempt. Auth failures,
// vendor throttling, malformed requests and garbage payloads stay terminal.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTimeout, KindConnectionFailure, KindServerError:
		return true
	default:
		return false
	}
}

// Error is the single failure type produced by the client. Status is 0 when
// no response arrived; RetryAfter is set only for KindRateLimited; Attempts
// counts how many attempts were actually made.
type Error struct {
	Kind       ErrorKind
	Status     int
	Detail     string
	Body       string
	RetryAfter time.Duration
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Detail, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from err, if it carries one.
func KindOf(err error) (ErrorKind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
