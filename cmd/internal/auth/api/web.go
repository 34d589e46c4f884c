package authapi

import (
	"net/http"
	"strings"
	"time"

	"studyrooms/cmd/internal/auth/session"
	"studyrooms/cmd/security/token"
)

// csrfKeyInfo is the HKDF info string for the CSRF subkey.
const csrfKeyInfo = "studyrooms csrf v1"

// setSessionCookies writes the HttpOnly session cookie and the readable csrf
// cookie, both expiring with tok.
func (h *Handler) setSessionCookies(w http.ResponseWriter, tok session.Token) string {
	csrf := h.csrfToken(tok.Claims.TokenID())
	h.setCookie(w, h.cfg.SessionCookieName, tok.Value, tok.ExpiresAt, true)
	h.setCookie(w, h.cfg.CSRFCookieName, csrf, tok.ExpiresAt, false)
	return csrf
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	h.expireCookie(w, h.cfg.SessionCookieName, true)
	h.expireCookie(w, h.cfg.CSRFCookieName, false)
}

func (h *Handler) sessionTokenFromCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(h.cfg.SessionCookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

// csrfToken is hex(HMAC-SHA256(csrfKey, jti)). Sessions without a jti have no
// valid token.
func (h *Handler) csrfToken(jti string) string {
	if jti == "" {
		return ""
	}
	return token.HashHMACSHA256Hex(jti, h.csrfKey)
}

// csrfValid checks the double submit: header equals cookie, and both equal the
// MAC bound to the session's jti.
func (h *Handler) csrfValid(r *http.Request, c *session.Claims) bool {
	// Tokens minted without a jti carry no CSRF binding.
	if c.TokenID() == "" {
		return false
	}
	cookie, err := r.Cookie(h.cfg.CSRFCookieName)
	if err != nil {
		return false
	}
	cv := strings.TrimSpace(cookie.Value)
	hv := strings.TrimSpace(r.Header.Get(h.cfg.CSRFHeaderName))
	if !token.EqualHex(cv, hv) {
		return false
	}
	return token.EqualHex(hv, h.csrfToken(c.TokenID()))
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, exp time.Time, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		HttpOnly: httpOnly,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) expireCookie(w http.ResponseWriter, name string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func isUnsafeMethod(m string) bool {
	switch m {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
