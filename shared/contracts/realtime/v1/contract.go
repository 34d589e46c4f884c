// Package v1 defines the studyrooms realtime protocol v1, spoken over the
// "studyrooms.v1" WebSocket subprotocol.
//
// It is shared by the server and tooling so the wire format stays authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is embedded into every envelope.
const Version = "v1"

// Subprotocol is the WebSocket subprotocol clients must offer.
const Subprotocol = "studyrooms.v1"

// Type constants (wire-stable).
const (
	// TypeHello starts the handshake (client -> server).
	TypeHello = "hello"
	// TypeHelloAck answers hello with the connection identity (server -> client).
	TypeHelloAck = "hello.ack"

	// TypeRoomSnapshot carries the full message list of the room (server -> client).
	TypeRoomSnapshot = "room.snapshot"

	// TypeMessageSend posts a message into the room (client -> server).
	TypeMessageSend = "message.send"
	// TypeMessageAck confirms a send with the backend message id (server -> client).
	TypeMessageAck = "message.ack"

	// TypeError reports a failure (server -> client).
	TypeError = "error"
)

// ErrUnknownType reports a well-formed envelope whose type this version does
// not define.
var ErrUnknownType = errors.New("unknown type")

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeHello,
		TypeHelloAck,
		TypeRoomSnapshot,
		TypeMessageSend,
		TypeMessageAck,
		TypeError:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
}
