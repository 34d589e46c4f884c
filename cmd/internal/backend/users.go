package backend

import "context"

// CreateUser registers a new account.
func (c *Client) CreateUser(ctx context.Context, u NewUser) error {
	r, err := c.call(ctx, EndpointCreateUser, u, nil)
	if err != nil {
		return err
	}
	return statusError(EndpointCreateUser, r, map[int]error{
		400: ErrServer,
		404: ErrEmailTaken,
		405: ErrEmailInvalid,
		406: ErrPasswordTooShort,
		407: ErrFirstNameBlank,
		408: ErrLastNameBlank,
	}, ErrServer)
}

// LoginUser checks credentials. Any status other than 200 and 400 is
// reported as ErrInvalidCredentials.
func (c *Client) LoginUser(ctx context.Context, email, password string) error {
	in := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}

	r, err := c.call(ctx, EndpointLoginUser, in, nil)
	if err != nil {
		return err
	}
	return statusError(EndpointLoginUser, r, map[int]error{
		400: ErrServer,
	}, ErrInvalidCredentials)
}

// FetchID resolves the numeric user id for email.
func (c *Client) FetchID(ctx context.Context, email string) (int64, error) {
	in := struct {
		UserEmail string `json:"userEmail"`
	}{email}
	var out struct {
		ID int64 `json:"id"`
	}

	r, err := c.call(ctx, EndpointFetchID, in, &out)
	if err != nil {
		return 0, err
	}
	if err := statusError(EndpointFetchID, r, nil, ErrServer); err != nil {
		return 0, err
	}
	return out.ID, nil
}
