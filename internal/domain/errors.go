package domain

import "errors"

// Sentinel errors shared across services and repositories. Controllers map
// these to stable API error codes; anything else is an internal error.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrNotEligible     = errors.New("not eligible for this event")
	ErrNotRegistered   = errors.New("not registered for this event")
	ErrInvalidInput    = errors.New("invalid input")
	ErrVersionConflict = errors.New("event was modified concurrently")
	ErrServerBusy      = errors.New("temporarily unable to complete request, retry")

	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
)
