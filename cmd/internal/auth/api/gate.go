package authapi

import (
	"context"
	"net/http"
	"strings"

	"studyrooms/cmd/internal/auth/session"
	"studyrooms/cmd/internal/httpx"
)

type claimsKey struct{}

// WithClaims stores verified session claims on ctx.
func WithClaims(ctx context.Context, c *session.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims stored by Gate or RequireSession.
func ClaimsFromContext(ctx context.Context) (*session.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*session.Claims)
	return c, ok && c != nil
}

// GatedPath reports whether path is one of the pages that need a session:
// /about, /about/*, /rooms and /roomchat.
func GatedPath(path string) bool {
	switch {
	case path == "/about" || strings.HasPrefix(path, "/about/"):
		return true
	case path == "/rooms" || path == "/roomchat":
		return true
	default:
		return false
	}
}

// Gate redirects requests for gated pages to the login page unless they carry
// a valid session. Other paths pass through untouched.
func (h *Handler) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GatedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		claims := h.authenticate(w, r)
		if claims == nil {
			http.Redirect(w, r, h.cfg.LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireSession is the API form of Gate: 401 without a session, 403 when an
// unsafe method lacks a matching CSRF header.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := h.authenticate(w, r)
		if claims == nil {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "login required")
			return
		}
		if isUnsafeMethod(r.Method) && !h.csrfValid(r, claims) {
			httpx.WriteError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid CSRF token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// Authenticate verifies the session cookie of r without touching the
// response. Used by the WebSocket upgrade, where cookies cannot be re-issued.
func (h *Handler) Authenticate(r *http.Request) *session.Claims {
	raw, ok := h.sessionTokenFromCookie(r)
	if !ok {
		return nil
	}
	claims, err := h.sessions.Verify(r.Context(), raw)
	if err != nil {
		h.log.Warn("auth.session.verify_error", "err", err)
		return nil
	}
	return claims
}

// authenticate verifies the session and slides its expiry forward when less
// than half the lifetime remains.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) *session.Claims {
	claims := h.Authenticate(r)
	if claims == nil || !h.sessions.NeedsRefresh(claims) {
		return claims
	}
	tok, err := h.sessions.Refresh(claims)
	if err != nil {
		h.log.Warn("auth.session.refresh_failed", "err", err)
		return claims
	}
	h.setSessionCookies(w, tok)
	h.log.Debug("auth.session.refreshed", "user_id", claims.UserID, "expires_at", tok.ExpiresAt)
	return tok.Claims
}
