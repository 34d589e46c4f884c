package rooms

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	authapi "studyrooms/cmd/internal/auth/api"
	"studyrooms/cmd/internal/backend"
	"studyrooms/cmd/internal/httpx"
)

// Backend is the slice of the backend client the room routes need.
type Backend interface {
	FetchAllRooms(ctx context.Context, email string) ([]backend.Room, error)
	CreateRoom(ctx context.Context, email, title string) error
	JoinRoom(ctx context.Context, userID int64, roomID string) error
	LeaveRoom(ctx context.Context, userID int64, roomID string) error
	DeleteRoom(ctx context.Context, roomID string) error
	FetchMessages(ctx context.Context, userID int64, roomID string) ([]backend.Message, error)
	SendMessage(ctx context.Context, userID int64, roomID, content string, image bool) (int64, error)
	DeleteMessage(ctx context.Context, userID, messageID int64) error
	ApproveMessage(ctx context.Context, userID, messageID int64) error
	FetchRoster(ctx context.Context, roomID string) ([]backend.RosterEntry, error)
	FetchTheme(ctx context.Context, roomID string) (string, error)
}

// Notifier is told when a room's messages changed so live feeds can re-poll.
type Notifier interface {
	NotifyRoom(roomID string)
}

// Handler serves the room routes.
type Handler struct {
	log    *slog.Logger
	cfg    Config
	api    Backend
	notify Notifier
}

// Option configures a Handler.
type Option func(*Handler)

// WithNotifier registers n to hear about message changes.
func WithNotifier(n Notifier) Option {
	return func(h *Handler) { h.notify = n }
}

// NewHandler constructs a rooms Handler.
func NewHandler(log *slog.Logger, cfg Config, api Backend, opts ...Option) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{log: log, cfg: cfg, api: api}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register mounts the routes on r behind requireSession.
func (h *Handler) Register(r chi.Router, requireSession func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireSession)

		r.Get("/api/rooms", h.handleListRooms)
		r.Post("/api/rooms", h.handleCreateRoom)
		r.Post("/api/rooms/join", h.handleJoinRoom)

		r.Route("/api/rooms/{roomId}", func(r chi.Router) {
			r.Use(roomIDParam)
			r.Delete("/", h.handleDeleteRoom)
			r.Post("/leave", h.handleLeaveRoom)
			r.Get("/messages", h.handleListMessages)
			r.Post("/messages", h.handleSendMessage)
			r.Get("/roster", h.handleRoster)
			r.Post("/roster/{userId}/kick", h.handleKick)
			r.Get("/theme", h.handleTheme)
		})

		r.Delete("/api/messages/{messageId}", h.handleDeleteMessage)
		r.Post("/api/messages/{messageId}/approve", h.handleApproveMessage)
	})
}

type roomIDKey struct{}

// roomIDParam rejects malformed room codes before any backend call.
func roomIDParam(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := NormalizeRoomID(chi.URLParam(r, "roomId"))
		if !ok {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_room_id", "room id must be 6 hex characters")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), roomIDKey{}, id)))
	})
}

func roomID(r *http.Request) string {
	id, _ := r.Context().Value(roomIDKey{}).(string)
	return id
}

// ---- rooms ----

func (h *Handler) handleListRooms(w http.ResponseWriter, r *http.Request) {
	c, _ := authapi.ClaimsFromContext(r.Context())
	list, err := h.api.FetchAllRooms(r.Context(), c.Email)
	if err != nil {
		h.writeBackendError(w, "rooms.list.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, roomsResponse{Rooms: list})
}

func (h *Handler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	c, _ := authapi.ClaimsFromContext(r.Context())
	var req createRoomRequest
	if err := httpx.DecodeJSON(w, r, 64<<10, &req); err != nil {
		httpx.WriteDecodeError(w, err)
		return
	}
	if fe := httpx.ValidateStruct(req); fe != nil {
		h.writeBackendError(w, "rooms.create.fail", backend.ErrRoomTitleLength)
		return
	}
	if err := h.api.CreateRoom(r.Context(), c.Email, req.Title); err != nil {
		h.writeBackendError(w, "rooms.create.fail", err)
		return
	}
	h.log.Info("rooms.create.ok", "user_id", c.UserID)
	httpx.WriteJSON(w, http.StatusCreated, statusResponse{Status: http.StatusOK})
}

func (h *Handler) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	c, _ := authapi.ClaimsFromContext(r.Context())
	var req joinRoomRequest
	if err := httpx.DecodeJSON(w, r, 64<<10, &req); err != nil {
		httpx.WriteDecodeError(w, err)
		return
	}
	id, ok := NormalizeRoomID(req.RoomID)
	if !ok {
		h.writeBackendError(w, "rooms.join.fail", backend.ErrInvalidRoomCode)
		return
	}
	if err := h.api.JoinRoom(r.Context(), c.UserID, id); err != nil {
		h.writeBackendError(w, "rooms.join.fail", err)
		return
	}
	h.log.Info("rooms.join.ok", "user_id", c.UserID, "room_id", id)
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK})
}

func (h *Handler) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	c, _ := authapi.ClaimsFromContext(r.Context())
	id := roomID(r)
	if err := h.api.LeaveRoom(r.Context(), c.UserID, id); err != nil {
		h.writeBackendError(w, "rooms.leave.fail", err)
		return
	}
	h.log.Info("rooms.leave.ok", "user_id", c.UserID, "room_id", id)
	h.notifyRoom(id)
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK})
}

func (h *Handler) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	c, _ := authapi.ClaimsFromContext(r.Context())
	id := roomID(r)
	roster, ok := h.requireAdmin(w, r, id, c.UserID, "rooms.delete.fail")
	if !ok {
		return
	}
	if err := h.api.DeleteRoom(r.Context(), id); err != nil {
		h.writeBackendError(w, "rooms.delete.fail", err)
		return
	}
	h.log.Info("rooms.delete.ok", "user_id", c.UserID, "room_id", id, "members", len(roster))
	h.notifyRoom(id)
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK})
}

// ---- roster ----

func (h *Handler) handleRoster(w http.ResponseWriter, r *http.Request) {
	roster, err := h.api.FetchRoster(r.Context(), roomID(r))
	if err != nil {
		h.writeBackendError(w, "rooms.roster.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rosterResponse{Roster: roster})
}

func (h *Handler) handleKick(w http.ResponseWriter, r *http.Request) {
	c, _ := authapi.ClaimsFromContext(r.Context())
	id := roomID(r)
	target, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil || target <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_user_id", "user id must be a positive integer")
		return
	}
	if target == c.UserID {
		httpx.WriteError(w, http.StatusBadRequest, "cannot_kick_self", "leave the room instead")
		return
	}
	roster, ok := h.requireAdmin(w, r, id, c.UserID, "rooms.kick.fail")
	if !ok {
		return
	}
	if !inRoster(roster, target) {
		httpx.WriteError(w, http.StatusNotFound, "not_in_room", "user is not in this room")
		return
	}
	if err := h.api.LeaveRoom(r.Context(), target, id); err != nil {
		h.writeBackendError(w, "rooms.kick.fail", err)
		return
	}
	h.log.Info("rooms.kick.ok", "admin_id", c.UserID, "user_id", target, "room_id", id)
	h.notifyRoom(id)
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK})
}

// requireAdmin loads the roster and checks that userID administers roomID.
// On failure the response has already been written.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request, roomID string, userID int64, event string) ([]backend.RosterEntry, bool) {
	roster, err := h.api.FetchRoster(r.Context(), roomID)
	if err != nil {
		h.writeBackendError(w, event, err)
		return nil, false
	}
	for _, e := range roster {
		if e.UserID == userID && e.Admin {
			return roster, true
		}
	}
	h.log.Info(event, "user_id", userID, "room_id", roomID, "reason", "not_admin")
	httpx.WriteError(w, http.StatusForbidden, "not_admin", "only the room admin can do that")
	return nil, false
}

func inRoster(roster []backend.RosterEntry, userID int64) bool {
	for _, e := range roster {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

func (h *Handler) handleTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.api.FetchTheme(r.Context(), roomID(r))
	switch {
	case errors.Is(err, backend.ErrNotFound):
		theme = "default"
	case err != nil:
		h.writeBackendError(w, "rooms.theme.fail", err)
		return
	case strings.TrimSpace(theme) == "":
		theme = "default"
	}
	httpx.WriteJSON(w, http.StatusOK, themeResponse{Theme: theme})
}

// ---- messages ----

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	c, _ := authapi.ClaimsFromContext(r.Context())
	msgs, err := h.api.FetchMessages(r.Context(), c.UserID, roomID(r))
	if err != nil {
		h.writeBackendError(w, "rooms.messages.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, messagesResponse{Messages: msgs})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	c, _ := authapi.ClaimsFromContext(r.Context())
	id := roomID(r)
	var req sendMessageRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.maxBodyBytes(), &req); err != nil {
		httpx.WriteDecodeError(w, err)
		return
	}
	if err := h.cfg.CheckMessage(req.Content, req.Image); err != nil {
		writeMessageError(w, err)
		return
	}
	msgID, err := h.api.SendMessage(r.Context(), c.UserID, id, req.Content, req.Image)
	if err != nil {
		h.writeBackendError(w, "rooms.send.fail", err)
		return
	}
	h.notifyRoom(id)
	httpx.WriteJSON(w, http.StatusCreated, sentResponse{Status: http.StatusOK, MessageID: msgID})
}

func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	h.mutateMessage(w, r, "rooms.message_delete", h.api.DeleteMessage)
}

func (h *Handler) handleApproveMessage(w http.ResponseWriter, r *http.Request) {
	h.mutateMessage(w, r, "rooms.message_approve", h.api.ApproveMessage)
}

func (h *Handler) mutateMessage(w http.ResponseWriter, r *http.Request, event string, fn func(context.Context, int64, int64) error) {
	c, _ := authapi.ClaimsFromContext(r.Context())
	msgID, err := strconv.ParseInt(chi.URLParam(r, "messageId"), 10, 64)
	if err != nil || msgID <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_message_id", "message id must be a positive integer")
		return
	}
	if err := fn(r.Context(), c.UserID, msgID); err != nil {
		h.writeBackendError(w, event+".fail", err)
		return
	}
	h.log.Info(event+".ok", "user_id", c.UserID, "message_id", msgID)
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK})
}

func (h *Handler) notifyRoom(roomID string) {
	if h.notify != nil {
		h.notify.NotifyRoom(roomID)
	}
}

func writeMessageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrImageTooLarge):
		httpx.WriteError(w, http.StatusRequestEntityTooLarge, "image_too_large", "image is too large")
	case errors.Is(err, ErrMessageTooLong):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "message_too_long", "message is too long")
	default:
		httpx.WriteError(w, http.StatusUnprocessableEntity, "message_empty", "message can't be blank")
	}
}

// writeBackendError translates a backend error once, at the edge.
func (h *Handler) writeBackendError(w http.ResponseWriter, event string, err error) {
	switch {
	case errors.Is(err, backend.ErrUnavailable):
		h.log.Warn(event, "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, "backend_unavailable", "backend unavailable")
	case errors.Is(err, backend.ErrRoomTitleLength):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid_title", "Room name must be between 1-75 characters!")
	case errors.Is(err, backend.ErrInvalidRoomCode):
		httpx.WriteError(w, http.StatusNotFound, "invalid_room_code", "Invalid room code!")
	case errors.Is(err, backend.ErrAlreadyInRoom):
		httpx.WriteError(w, http.StatusConflict, "already_in_room", "Already in room!")
	case errors.Is(err, backend.ErrNotMember):
		httpx.WriteRedirectError(w, http.StatusForbidden, "not_member", "Not a member of that room!", "/rooms")
	case errors.Is(err, backend.ErrNotFoundOrUnauthorized):
		httpx.WriteError(w, http.StatusNotFound, "message_not_found", "Message not found or unauthorized")
	case errors.Is(err, backend.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "room_not_found", "room not found")
	default:
		h.log.Warn(event, "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "server_error", "Server error!")
	}
}
