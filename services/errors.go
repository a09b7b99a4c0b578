package services

import "errors"

// Sentinel errors the handlers translate into HTTP status codes.
// Services wrap these with fmt.Errorf("%w: ...") so callers can use
// errors.Is while logs keep the detail.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidState     = errors.New("invalid state")
	ErrConflict         = errors.New("conflict")
	ErrImmutableTaskSet = errors.New("task set is immutable for this challenge level")
)
