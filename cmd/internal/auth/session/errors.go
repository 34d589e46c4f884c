package session

import "errors"

var (
	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")

	// ErrInvalidIdentity is returned when Issue is called without an email.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrRevocationCheck is returned when the revocation store cannot answer.
	// Callers should treat the request as unauthenticated.
	ErrRevocationCheck = errors.New("revocation check failed")
)
