package authapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"studyrooms/cmd/internal/auth/session"
	"studyrooms/cmd/internal/backend"
	"studyrooms/cmd/internal/httpx"
)

const (
	msgAccountCreated     = "Account created!"
	msgServerError        = "Server Error!"
	msgEmailTaken         = "This email is already registered!"
	msgEmailInvalid       = "Email must contain an @!"
	msgPasswordTooShort   = "Password must contain at least 8 characters!"
	msgFirstNameBlank     = "First name can't be blank!"
	msgLastNameBlank      = "Last name can't be blank!"
	msgLoggedIn           = "Logged in!"
	msgInvalidCredentials = "Invalid email/password combination!"
)

// Users is the slice of the backend client the auth routes need.
type Users interface {
	CreateUser(ctx context.Context, u backend.NewUser) error
	LoginUser(ctx context.Context, email, password string) error
	FetchID(ctx context.Context, email string) (int64, error)
}

// Handler serves signup, login, logout and session routes and owns the
// session cookie contract.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	sessions *session.Service
	users    Users
	csrfKey  []byte
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Service, users Users) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if sessions == nil {
		return nil, errors.New("auth: nil session service")
	}
	if users == nil {
		return nil, errors.New("auth: nil users backend")
	}
	key, err := sessions.DeriveKey(csrfKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("auth: csrf key: %w", err)
	}
	return &Handler{log: log, cfg: cfg, sessions: sessions, users: users, csrfKey: key}, nil
}

// Register wires the auth routes onto r.
func (h *Handler) Register(r chi.Router) {
	limit := h.rateLimiter()
	r.Route("/api/auth", func(r chi.Router) {
		r.With(limit).Post("/signup", h.handleSignup)
		r.With(limit).Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
		r.Get("/session", h.handleSession)
	})
	r.With(limit).Post("/api/set-cookie", h.handleSetCookie)
}

// ---- handlers ----

// signupOutcome maps a create-user result onto the web client's contract.
type signupOutcome struct {
	status   int
	httpCode int
	message  string
}

var signupOutcomes = []struct {
	err error
	out signupOutcome
}{
	{backend.ErrEmailTaken, signupOutcome{404, http.StatusConflict, msgEmailTaken}},
	{backend.ErrEmailInvalid, signupOutcome{405, http.StatusUnprocessableEntity, msgEmailInvalid}},
	{backend.ErrPasswordTooShort, signupOutcome{406, http.StatusUnprocessableEntity, msgPasswordTooShort}},
	{backend.ErrFirstNameBlank, signupOutcome{407, http.StatusUnprocessableEntity, msgFirstNameBlank}},
	{backend.ErrLastNameBlank, signupOutcome{408, http.StatusUnprocessableEntity, msgLastNameBlank}},
}

func outcomeFor(err error) signupOutcome {
	for _, o := range signupOutcomes {
		if errors.Is(err, o.err) {
			return o.out
		}
	}
	return signupOutcome{400, http.StatusBadGateway, msgServerError}
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteDecodeError(w, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	// Field rules are left to create-user: it reports a taken email before
	// any other problem, and a local check would mask that.
	err := h.users.CreateUser(r.Context(), backend.NewUser{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	switch {
	case err == nil:
		h.log.Info("auth.signup.ok", "email", req.Email)
		httpx.WriteJSON(w, http.StatusCreated, statusResponse{Status: http.StatusOK, Message: msgAccountCreated})
	case errors.Is(err, backend.ErrUnavailable):
		h.writeUnavailable(w, "auth.signup.fail", err)
	default:
		o := outcomeFor(err)
		h.log.Info("auth.signup.rejected", "email", req.Email, "status", o.status)
		httpx.WriteJSON(w, o.httpCode, statusResponse{Status: o.status, Message: o.message})
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteDecodeError(w, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if fe := httpx.ValidateStruct(req); fe != nil {
		httpx.WriteJSON(w, http.StatusUnauthorized, statusResponse{Status: http.StatusNotFound, Message: msgInvalidCredentials})
		return
	}

	err := h.users.LoginUser(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, backend.ErrUnavailable):
		h.writeUnavailable(w, "auth.login.fail", err)
		return
	case errors.Is(err, backend.ErrInvalidCredentials):
		h.log.Info("auth.login.fail", "email", req.Email, "status", backendStatus(err))
		httpx.WriteJSON(w, http.StatusUnauthorized, statusResponse{Status: backendStatus(err), Message: msgInvalidCredentials})
		return
	default:
		h.log.Warn("auth.login.fail", "email", req.Email, "err", err)
		httpx.WriteJSON(w, http.StatusBadGateway, statusResponse{Status: http.StatusBadRequest, Message: msgServerError})
		return
	}

	if !h.issueFor(w, r, req.Email, "auth.login.fail") {
		return
	}
	h.log.Info("auth.login.ok", "email", req.Email)
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK, Message: msgLoggedIn, Redirect: "/rooms"})
}

// issueFor resolves the user id for email and sets fresh session cookies.
// On failure the response has already been written.
func (h *Handler) issueFor(w http.ResponseWriter, r *http.Request, email, event string) bool {
	id, err := h.users.FetchID(r.Context(), email)
	if err != nil {
		if errors.Is(err, backend.ErrUnavailable) {
			h.writeUnavailable(w, event, err)
		} else {
			h.log.Warn(event, "email", email, "step", "fetch_id", "err", err)
			httpx.WriteJSON(w, http.StatusBadGateway, statusResponse{Status: http.StatusBadRequest, Message: msgServerError})
		}
		return false
	}

	tok, err := h.sessions.Issue(session.Identity{Email: email, ID: id})
	if err != nil {
		h.log.Error(event, "email", email, "step", "issue", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not create session")
		return false
	}
	h.setSessionCookies(w, tok)
	return true
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	// A token without a jti has nothing to revoke and no CSRF binding; only
	// its cookies are cleared.
	if claims := h.Authenticate(r); claims != nil && claims.TokenID() != "" {
		if !h.csrfValid(r, claims) {
			httpx.WriteError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid CSRF token")
			return
		}
		if err := h.sessions.Revoke(r.Context(), claims); err != nil {
			h.log.Warn("auth.logout.revoke_failed", "user_id", claims.UserID, "err", err)
		} else {
			h.log.Info("auth.logout.ok", "user_id", claims.UserID)
		}
	}
	h.clearSessionCookies(w)
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	claims := h.authenticate(w, r)
	if claims == nil {
		httpx.WriteJSON(w, http.StatusOK, sessionResponse{LoggedIn: false})
		return
	}
	exp := claims.Expiry()
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		LoggedIn:  true,
		Email:     claims.Email,
		ID:        claims.UserID,
		ExpiresAt: &exp,
	})
}

// handleSetCookie keeps the old set-cookie contract: status travels in the
// body and the HTTP status is always 200.
func (h *Handler) handleSetCookie(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.LegacySetCookie {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "not found")
		return
	}
	var req setCookieRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteDecodeError(w, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if fe := httpx.ValidateStruct(req); fe != nil {
		httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: http.StatusInternalServerError})
		return
	}

	id, err := h.users.FetchID(r.Context(), req.Email)
	if err != nil {
		h.log.Warn("auth.set_cookie.fail", "email", req.Email, "err", err)
		httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: http.StatusInternalServerError})
		return
	}
	tok, err := h.sessions.Issue(session.Identity{Email: req.Email, ID: id})
	if err != nil {
		h.log.Error("auth.set_cookie.fail", "email", req.Email, "err", err)
		httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: http.StatusInternalServerError})
		return
	}
	h.setSessionCookies(w, tok)
	h.log.Info("auth.set_cookie.ok", "email", req.Email)
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK})
}

func (h *Handler) writeUnavailable(w http.ResponseWriter, event string, err error) {
	h.log.Warn(event, "err", err)
	httpx.WriteError(w, http.StatusServiceUnavailable, "backend_unavailable", "backend unavailable")
}

// backendStatus extracts the backend's status code from err, or 0.
func backendStatus(err error) int {
	var se *backend.StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
