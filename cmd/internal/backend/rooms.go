package backend

import "context"

type roomRef struct {
	RoomID string `json:"roomId"`
}

type membershipRef struct {
	UserID int64  `json:"userId"`
	RoomID string `json:"roomId"`
}

// FetchAllRooms lists the rooms email belongs to.
func (c *Client) FetchAllRooms(ctx context.Context, email string) ([]Room, error) {
	in := struct {
		Email string `json:"email"`
	}{email}
	var out struct {
		Rooms []Room `json:"rooms"`
	}

	r, err := c.call(ctx, EndpointFetchAllRooms, in, &out)
	if err != nil {
		return nil, err
	}
	if err := statusError(EndpointFetchAllRooms, r, nil, ErrServer); err != nil {
		return nil, err
	}
	if out.Rooms == nil {
		out.Rooms = []Room{}
	}
	return out.Rooms, nil
}

// CreateRoom creates a room administered by email.
func (c *Client) CreateRoom(ctx context.Context, email, title string) error {
	in := struct {
		Email string `json:"email"`
		Title string `json:"title"`
	}{email, title}

	r, err := c.call(ctx, EndpointCreateRoom, in, nil)
	if err != nil {
		return err
	}
	return statusError(EndpointCreateRoom, r, map[int]error{
		401: ErrRoomTitleLength,
	}, ErrServer)
}

// JoinRoom adds userID to roomID.
func (c *Client) JoinRoom(ctx context.Context, userID int64, roomID string) error {
	r, err := c.call(ctx, EndpointJoinRoom, membershipRef{userID, roomID}, nil)
	if err != nil {
		return err
	}
	return statusError(EndpointJoinRoom, r, map[int]error{
		401: ErrInvalidRoomCode,
		402: ErrAlreadyInRoom,
	}, ErrServer)
}

// LeaveRoom removes userID from roomID. The backend also deletes that user's
// messages in the room. An admin kicking a member uses the member's id.
func (c *Client) LeaveRoom(ctx context.Context, userID int64, roomID string) error {
	r, err := c.call(ctx, EndpointLeaveRoom, membershipRef{userID, roomID}, nil)
	if err != nil {
		return err
	}
	return statusError(EndpointLeaveRoom, r, nil, ErrServer)
}

// DeleteRoom deletes roomID. The backend performs no ownership check.
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	r, err := c.call(ctx, EndpointDeleteRoom, roomRef{roomID}, nil)
	if err != nil {
		return err
	}
	return statusError(EndpointDeleteRoom, r, nil, ErrServer)
}

// FetchRoster lists room members, admin first.
func (c *Client) FetchRoster(ctx context.Context, roomID string) ([]RosterEntry, error) {
	var out struct {
		Data []RosterEntry `json:"data"`
	}
	r, err := c.call(ctx, EndpointFetchRoster, roomRef{roomID}, &out)
	if err != nil {
		return nil, err
	}
	if err := statusError(EndpointFetchRoster, r, map[int]error{
		404: ErrNotFound,
	}, ErrServer); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// FetchTheme returns the room's theme name.
func (c *Client) FetchTheme(ctx context.Context, roomID string) (string, error) {
	var out struct {
		Theme string `json:"theme"`
	}
	r, err := c.call(ctx, EndpointFetchTheme, roomRef{roomID}, &out)
	if err != nil {
		return "", err
	}
	if err := statusError(EndpointFetchTheme, r, map[int]error{
		404: ErrNotFound,
	}, ErrServer); err != nil {
		return "", err
	}
	return out.Theme, nil
}
