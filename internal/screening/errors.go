package screening

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrSessionNotFound = errors.New("session not found or expired")
	ErrConflict        = errors.New("session was modified concurrently")

	// ErrUpstream marks a provider failure. The engine converts it to a
	// fallback and never returns it to callers.
	ErrUpstream = errors.New("completion provider failed")
)
