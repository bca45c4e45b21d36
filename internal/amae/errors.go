package amae

import (
	"errors"
	"fmt"
)

// StatusError is a non-2xx response from the game-record API. 5xx codes are
// retried like network failures; 4xx codes abort immediately since the
// request itself is wrong.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api returned status %d", e.Code)
	}
	return fmt.Sprintf("api returned status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the status suggests a transient server fault.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 && e.Code < 600
}

// ParseError is a response body that is not the expected JSON array of game
// records. It carries the request's cursor so the offending page can be
// re-fetched for diagnosis. Never retried.
type ParseError struct {
	EndMs int64
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse page at cursor %d: %v", e.EndMs, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// retryable classifies an error for the client's retry loop: network-level
// failures and 5xx statuses retry, everything else surfaces immediately.
func retryable(err error) bool {
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr.Retryable()
	}
	var perr *ParseError
	if errors.As(err, &perr) {
		return false
	}
	return true
}
