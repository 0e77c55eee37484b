package calendar

import "errors"

var (
	// ErrInvalidInterval marks an event whose end is not after its start, or
	// whose dates could not be parsed.
	ErrInvalidInterval = errors.New("invalid event interval")
	// ErrUnknownColor marks a color outside the supported enumeration.
	ErrUnknownColor = errors.New("unknown event color")
	// ErrEventNotFound is returned when an event id is not in the session.
	ErrEventNotFound = errors.New("event not found")
	// ErrForbidden is returned when a user changes an event they do not own.
	ErrForbidden = errors.New("event belongs to another user")
	// ErrMutationFailed wraps a rejection from the persistence backend.
	ErrMutationFailed = errors.New("event mutation failed")
)
