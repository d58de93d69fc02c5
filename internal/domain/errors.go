package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotRegistered       = errors.New("participant is not registered for this contest")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("concurrent update conflict, try again")
	ErrUpstreamUnavailable = errors.New("upstream unavailable, try again")
	ErrInvalidInput        = errors.New("invalid input")
	ErrAlreadyRegistered   = errors.New("participant already registered")

	// ErrStaleDefinition means the contest was edited after the participant's
	// pointer was built. It is a Conflict that retrying cannot resolve.
	ErrStaleDefinition = fmt.Errorf("%w: contest definition changed since the participant started", ErrConflict)
)

// Forbiddenf wraps ErrForbidden with an actionable message.
func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Invalidf wraps ErrInvalidInput.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
