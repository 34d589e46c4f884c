package session

import (
	"crypto/rand"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Claims is the session cookie payload.
//
// The first three fields are the cookie contract shared with every consumer
// of the cookie; RegisteredClaims adds iat, exp, iss and jti.
type Claims struct {
	Email         string    `json:"email"`
	CookieExpires time.Time `json:"cookieExpires"`
	UserID        int64     `json:"id"`

	jwt.RegisteredClaims
}

// TokenID returns the jti or "" for tokens minted without one.
func (c *Claims) TokenID() string {
	if c == nil {
		return ""
	}
	return c.RegisteredClaims.ID
}

// Expiry returns exp when present and falls back to cookieExpires.
// A zero time means the token carries no expiry at all.
func (c *Claims) Expiry() time.Time {
	if c == nil {
		return time.Time{}
	}
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return c.CookieExpires
}

// Identity is what a session asserts about its holder.
type Identity struct {
	Email string
	ID    int64
}

// Identity returns the holder of the session.
func (c *Claims) Identity() Identity {
	return Identity{Email: c.Email, ID: c.UserID}
}

// Token is a signed session ready to be placed in a cookie.
type Token struct {
	Value     string
	ExpiresAt time.Time
	Claims    *Claims
}

func newTokenID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
