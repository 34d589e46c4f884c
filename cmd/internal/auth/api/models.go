package authapi

import "time"

type signupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type setCookieRequest struct {
	Email string `json:"email" validate:"required"`
}

// statusResponse mirrors the {status, message} bodies the web client reads.
type statusResponse struct {
	Status   int    `json:"status"`
	Message  string `json:"message,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

type sessionResponse struct {
	LoggedIn  bool       `json:"loggedIn"`
	Email     string     `json:"email,omitempty"`
	ID        int64      `json:"id,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type pageView struct {
	Page  string `json:"page"`
	Email string `json:"email,omitempty"`
	ID    int64  `json:"id,omitempty"`
}
