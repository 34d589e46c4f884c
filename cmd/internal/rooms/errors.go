package rooms

import "errors"

var (
	ErrEmptyMessage   = errors.New("message content is blank")
	ErrMessageTooLong = errors.New("message text too long")
	ErrImageTooLarge  = errors.New("image payload too large")
)
