package v1

// HelloPayload is sent by the client to initiate a session.
type HelloPayload struct{}

// HelloAckPayload identifies the connection.
type HelloAckPayload struct {
	ConnectionID string `json:"connection_id"`
	RoomID       string `json:"room_id"`
	UserID       int64  `json:"user_id"`
}

// Message is one chat message as seen by the connected user. When Image is
// set, Message holds the image payload.
type Message struct {
	MessageID int64  `json:"message_id"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Message   string `json:"message"`
	Image     bool   `json:"image"`
	Flagged   bool   `json:"flagged"`
}

// RoomSnapshotPayload is pushed on join and whenever the list changes.
type RoomSnapshotPayload struct {
	RoomID   string    `json:"room_id"`
	Digest   string    `json:"digest"`
	Messages []Message `json:"messages"`
}

// MessageSendPayload posts content into the connection's room.
type MessageSendPayload struct {
	ClientMsgID string `json:"client_msg_id"`
	Content     string `json:"content"`
	Image       bool   `json:"image,omitempty"`
}

// MessageAckPayload confirms a send.
type MessageAckPayload struct {
	ClientMsgID string `json:"client_msg_id"`
	MessageID   int64  `json:"message_id"`
}

// ErrorPayload is a generic error payload. Redirect, when set, is the page the
// client should navigate to.
type ErrorPayload struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}
