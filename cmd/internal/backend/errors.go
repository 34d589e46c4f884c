package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the backend could not be reached or answered garbage.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrServer is the backend's generic failure status (usually 400).
	ErrServer = errors.New("backend server error")

	ErrEmailTaken         = errors.New("email already registered")
	ErrEmailInvalid       = errors.New("email must contain an @")
	ErrPasswordTooShort   = errors.New("password must contain at least 8 characters")
	ErrFirstNameBlank     = errors.New("first name can't be blank")
	ErrLastNameBlank      = errors.New("last name can't be blank")
	ErrInvalidCredentials = errors.New("invalid email/password combination")

	ErrRoomTitleLength = errors.New("room name must be between 1-75 characters")
	ErrInvalidRoomCode = errors.New("invalid room code")
	ErrAlreadyInRoom   = errors.New("already in room")
	ErrNotMember       = errors.New("not a member of that room")

	ErrNotFoundOrUnauthorized = errors.New("message not found or unauthorized")
	ErrNotFound               = errors.New("not found")
)

// StatusError is a non-200 domain status returned by an endpoint.
type StatusError struct {
	Endpoint string
	Status   int
	// Message is the backend's "error" text, when it sent one.
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend %s: status %d: %v (%s)", e.Endpoint, e.Status, e.Err, e.Message)
	}
	return fmt.Sprintf("backend %s: status %d: %v", e.Endpoint, e.Status, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// UnavailableError describes a transport-level failure.
// HTTPStatus is 0 when no response was received.
type UnavailableError struct {
	Endpoint   string
	HTTPStatus int
	Err        error
}

func (e *UnavailableError) Error() string {
	switch {
	case e.HTTPStatus > 0:
		return fmt.Sprintf("backend %s: http %d", e.Endpoint, e.HTTPStatus)
	case e.Err != nil:
		return fmt.Sprintf("backend %s: %v", e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("backend %s: unavailable", e.Endpoint)
	}
}

func (e *UnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnavailable}
	}
	return []error{ErrUnavailable, e.Err}
}

// statusError maps a non-200 status via known, defaulting to fallback.
func statusError(endpoint string, r reply, known map[int]error, fallback error) error {
	if r.Status == 200 {
		return nil
	}
	err, ok := known[r.Status]
	if !ok {
		err = fallback
	}
	return &StatusError{Endpoint: endpoint, Status: r.Status, Message: r.Message, Err: err}
}
