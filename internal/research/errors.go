package research

import "errors"

var (
	// ErrUnknownStrategy is returned for a strategy name that has no planner.
	ErrUnknownStrategy = errors.New("unknown research strategy")

	// ErrUnknownImportance is returned for an importance tier that is not low, medium or high.
	ErrUnknownImportance = errors.New("unknown importance")
)
