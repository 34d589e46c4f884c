package backend

import "context"

type messageRef struct {
	UserID    int64 `json:"userId"`
	MessageID int64 `json:"messageId"`
}

// FetchMessages returns the room history as seen by userID.
func (c *Client) FetchMessages(ctx context.Context, userID int64, roomID string) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	r, err := c.call(ctx, EndpointFetchMessages, membershipRef{userID, roomID}, &out)
	if err != nil {
		return nil, err
	}
	if err := statusError(EndpointFetchMessages, r, map[int]error{
		401: ErrNotMember,
	}, ErrServer); err != nil {
		return nil, err
	}
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	return out.Messages, nil
}

// SendMessage posts content to roomID and returns the new message id.
// When image is true, content carries the image payload.
func (c *Client) SendMessage(ctx context.Context, userID int64, roomID, content string, image bool) (int64, error) {
	in := struct {
		UserID  int64  `json:"userId"`
		RoomID  string `json:"roomId"`
		Content string `json:"content"`
		Image   bool   `json:"image"`
	}{userID, roomID, content, image}
	var out struct {
		MessageID int64 `json:"messageId"`
	}

	r, err := c.call(ctx, EndpointSendMessage, in, &out)
	if err != nil {
		return 0, err
	}
	if err := statusError(EndpointSendMessage, r, map[int]error{
		401: ErrNotMember,
	}, ErrServer); err != nil {
		return 0, err
	}
	return out.MessageID, nil
}

// DeleteMessage deletes a message the caller authored or administers.
func (c *Client) DeleteMessage(ctx context.Context, userID, messageID int64) error {
	r, err := c.call(ctx, EndpointDeleteMessage, messageRef{userID, messageID}, nil)
	if err != nil {
		return err
	}
	return statusError(EndpointDeleteMessage, r, map[int]error{
		404: ErrNotFoundOrUnauthorized,
	}, ErrServer)
}

// ApproveMessage clears the moderation flag. The author and the room admin may.
func (c *Client) ApproveMessage(ctx context.Context, userID, messageID int64) error {
	r, err := c.call(ctx, EndpointApproveMessage, messageRef{userID, messageID}, nil)
	if err != nil {
		return err
	}
	return statusError(EndpointApproveMessage, r, map[int]error{
		404: ErrNotFoundOrUnauthorized,
	}, ErrServer)
}
