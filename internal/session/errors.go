package session

import "errors"

var (
	// ErrNotFound is returned when no session file exists for an id.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidID is returned for ids that cannot name a file in the session directory.
	ErrInvalidID = errors.New("invalid session id")

	// ErrCorrupt is returned when a session file cannot be decoded.
	ErrCorrupt = errors.New("corrupt session file")
)
