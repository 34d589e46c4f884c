package realtime

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewConnectionID returns a random UUID identifying one WebSocket connection.
func NewConnectionID() string {
	return uuid.NewString()
}

// NewEnvelopeID returns a ULID; envelope ids sort by time in logs.
func NewEnvelopeID(now time.Time) string {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
