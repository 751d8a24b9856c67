package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthInvalid means the credential was rejected.
	ErrAuthInvalid = errors.New("authentication failed")

	// ErrRateLimited means the API asked the caller to back off.
	ErrRateLimited = errors.New("rate limited")

	// ErrBadRequest means the request payload was rejected.
	ErrBadRequest = errors.New("bad request")

	// ErrTransport covers network failures and server-side errors.
	ErrTransport = errors.New("transport failure")

	// ErrNoAPIKey is returned by NewAnthropic when no key is configured.
	ErrNoAPIKey = errors.New("no API key configured")
)

// APIError is a failed API round-trip. It unwraps to one of the kind
// sentinels so callers can branch with errors.Is.
type APIError struct {
	Kind       error
	Status     int
	Type       string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := e.Kind.Error()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// IsTransient reports whether err is worth retrying by re-issuing input.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransport)
}

func kindForStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrAuthInvalid
	case status == 429:
		return ErrRateLimited
	case status >= 400 && status < 500:
		return ErrBadRequest
	default:
		return ErrTransport
	}
}
