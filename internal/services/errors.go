package services

import (
	"errors"
	"fmt"

	"timemate/internal/models"
	"timemate/internal/roster"
	"timemate/internal/supabase"
)

// ValidationError is a client-side precondition that was not met.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func invalid(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

var (
	ErrNotSignedIn      = invalid("sign in first")
	ErrInvalidStart     = invalid("start time is invalid")
	ErrInvalidEnd       = invalid("end time is invalid")
	ErrEndBeforeStart   = invalid("end time must be after start time")
	ErrCapacityRange    = invalid(fmt.Sprintf("capacity must be between %d and %d", models.MinCapacity, models.MaxCapacity))
	ErrTitleRequired    = invalid("title is required")
	ErrPurposeRequired  = invalid("purpose is required")
	ErrPlaceRequired    = invalid("place is required")
	ErrAlreadyJoined    = invalid("already joined")
	ErrSessionFull      = invalid("capacity full")
	ErrNotHost          = invalid("only the host can close the session")
	ErrSessionNotFound  = invalid("session not found")
	ErrInvalidSort      = invalid(roster.ErrInvalidSortMode.Error())
	ErrNicknameRequired = invalid("nickname is required")
	ErrEmailRequired    = invalid("email is required")
	ErrPasswordTooShort = invalid(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
)

// MinPasswordLength is the shortest password accepted on reset.
const MinPasswordLength = 6

// IsValidation reports whether err is a precondition failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// RemoteError is a failure returned by the auth provider or record store.
// Its message is the remote message, unchanged.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	var apiErr *supabase.APIError
	if errors.As(e.Err, &apiErr) {
		return apiErr.Error()
	}
	return e.Err.Error()
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func remote(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, Err: err}
}

// HostMembershipError means the session row was written but its host
// membership was not. The session is left in place.
type HostMembershipError struct {
	Session models.Session
	Err     error
}

func (e *HostMembershipError) Error() string {
	return "session created but saving the host membership failed: " + e.Err.Error()
}

func (e *HostMembershipError) Unwrap() error {
	return e.Err
}
