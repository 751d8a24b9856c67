package workflow

import "errors"

var (
	// ErrExit is returned after the operator typed exit. The session has
	// been persisted and can be resumed.
	ErrExit = errors.New("session exited by operator")

	// ErrAbandoned is returned after the operator abandoned the session at
	// a phase checkpoint. The session has been persisted.
	ErrAbandoned = errors.New("session abandoned by operator")
)
