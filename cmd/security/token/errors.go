package token

import "errors"

// Public, stable errors for callers.
var (
	ErrKeyMissing  = errors.New("cookie key missing")
	ErrKeyTooShort = errors.New("cookie key too short")
)
