package services

import "errors"

// Domain error kinds. Handlers map these to HTTP statuses; everything
// else surfaces as an internal error.
var (
	// ErrNotFound: unknown report, identity, or notification id.
	ErrNotFound = errors.New("not found")

	// ErrForbidden: the actor lacks the role or ownership the
	// operation requires.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition: a state machine rule was violated, such as
	// re-verifying a report already in a terminal verification state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidInput: a request value is malformed or outside its
	// domain, such as an unknown severity label.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyApplied: a repeat of an operation whose contract treats
	// repetition as an error. The idempotent paths (vote toggles,
	// compliments, notification deletes) return success on repeats
	// instead, and double verification is an invalid transition, so no
	// current operation produces this kind.
	ErrAlreadyApplied = errors.New("already applied")

	// ErrEmailTaken: registration with an email that already has an
	// account (builtin seeds included).
	ErrEmailTaken = errors.New("email already registered")

	// ErrBadCredentials: login with an unknown email or wrong password.
	ErrBadCredentials = errors.New("invalid credentials")
)
