package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"studyrooms/cmd/internal/auth/session"
	"studyrooms/cmd/internal/backend"
	"studyrooms/cmd/internal/metrics"
	"studyrooms/cmd/internal/rooms"
	v1 "studyrooms/shared/contracts/realtime/v1"
)

// Authenticator resolves the session cookie of an upgrade request.
type Authenticator interface {
	Authenticate(r *http.Request) *session.Claims
}

// MessageSender posts chat messages on behalf of a user.
type MessageSender interface {
	SendMessage(ctx context.Context, userID int64, roomID, content string, image bool) (int64, error)
}

// WSGateway is the WebSocket entrypoint of the room feed: GET /ws/rooms/{roomId}.
//
// It enforces session, origin policy, subprotocol selection, rate limits and
// heartbeats, then attaches the connection to the Hub.
type WSGateway struct {
	log    *slog.Logger
	cfg    Config
	hub    *Hub
	auth   Authenticator
	sender MessageSender
	msgCfg rooms.Config

	// Derived for websocket.Accept origin checks.
	originPatterns []string
}

// NewWSGateway constructs a gateway.
func NewWSGateway(log *slog.Logger, cfg Config, hub *Hub, auth Authenticator, sender MessageSender, msgCfg rooms.Config) *WSGateway {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &WSGateway{
		log:    log,
		cfg:    cfg,
		hub:    hub,
		auth:   auth,
		sender: sender,
		msgCfg: msgCfg,

		// websocket.Accept applies its own origin policy: same host is fine,
		// cross-origin needs OriginPatterns. Derive them from the allowlist
		// so both layers agree.
		originPatterns: deriveOriginPatternsFromAllowedOrigins(cfg.AllowedOrigins),
	}
}

// Register mounts the gateway on r.
func (g *WSGateway) Register(r chi.Router) {
	r.Get("/ws/rooms/{roomId}", g.ServeHTTP)
}

// ServeHTTP upgrades the request and runs the connection until either side closes.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID, ok := rooms.NormalizeRoomID(chi.URLParam(r, "roomId"))
	if !ok {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	claims := g.auth.Authenticate(r)
	if claims == nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	// The server's read/write timeouts would otherwise kill long-lived connections.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{v1.Subprotocol},
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	if sp := conn.Subprotocol(); sp != v1.Subprotocol {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", v1.Subprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	metrics.RealtimeConnections.Inc()
	defer metrics.RealtimeConnections.Dec()

	client := NewClient(NewConnectionID(), claims.UserID, roomID, g.cfg.SendQueueSize)
	log := g.log.With("conn_id", client.ID, "user_id", client.UserID, "room_id", roomID)
	log.Info("ws.open")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once
	// shutdown is idempotent. It does NOT close client.Send.
	shutdown := func() {
		closeOnce.Do(func() {
			g.hub.Leave(client)
			client.Close()
			code, reason := client.CloseStatus()
			_ = conn.Close(code, reason)
			cancel()
			log.Info("ws.close", "code", code.String(), "reason", reason)
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				g.drain(ctx, conn, client)
				shutdown()
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.cfg.WriteTimeout); err != nil {
					log.Info("ws.write.fail", "close_status", websocket.CloseStatus(err), "err", err)
					client.CloseWith(websocket.StatusAbnormalClosure, "write failed")
					shutdown()
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		t := time.NewTicker(g.cfg.HeartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()
				if err != nil {
					failures++
					log.Info("ws.ping.fail", "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						client.CloseWith(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	if err := g.hub.Join(client); err != nil {
		client.CloseWith(websocket.StatusGoingAway, "server shutting down")
	}

	frames := rate.NewLimiter(rate.Limit(frameRatePerSec), frameBurst)
	sends := rate.NewLimiter(rate.Limit(g.cfg.SendRate), g.cfg.SendBurst)

readLoop:
	for {
		env, err := readEnvelope(ctx, conn)
		if err != nil {
			switch classifyReadErr(err) {
			case readErrBadJSON:
				g.trySendError(client, "bad_json", "invalid JSON")
				continue readLoop
			case readErrClose, readErrCtxDone, readErrConnClosed:
			default:
				log.Info("ws.read.fail", "err", err)
				client.CloseWith(websocket.StatusAbnormalClosure, "read failed")
			}
			break readLoop
		}

		if !frames.Allow() {
			g.trySendError(client, "rate_limited", "too many events")
			client.CloseWith(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			if errors.Is(err, v1.ErrUnknownType) {
				g.trySendError(client, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
				continue readLoop
			}
			g.trySendError(client, "bad_envelope", err.Error())
			continue readLoop
		}

		switch env.Type {
		case v1.TypeHello:
			g.enqueue(client, newEnvelope(v1.TypeHelloAck, v1.HelloAckPayload{
				ConnectionID: client.ID,
				RoomID:       client.RoomID,
				UserID:       client.UserID,
			}))

		case v1.TypeMessageSend:
			if !sends.Allow() {
				g.trySendError(client, "rate_limited", "slow down")
				continue readLoop
			}
			g.onMessageSend(ctx, log, client, env)

		default:
			g.trySendError(client, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
		}
	}

	shutdown()
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// ---- handlers ----

func (g *WSGateway) onMessageSend(ctx context.Context, log *slog.Logger, client *Client, env v1.Envelope) {
	var p v1.MessageSendPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		g.trySendError(client, "bad_payload", "invalid payload")
		return
	}
	if strings.TrimSpace(p.ClientMsgID) == "" {
		g.trySendError(client, "bad_payload", "missing client_msg_id")
		return
	}
	if err := g.msgCfg.CheckMessage(p.Content, p.Image); err != nil {
		g.trySendError(client, "invalid_message", err.Error())
		return
	}

	id, err := g.sender.SendMessage(ctx, client.UserID, client.RoomID, p.Content, p.Image)
	switch {
	case err == nil:
	case errors.Is(err, backend.ErrNotMember):
		g.trySendErrorRedirect(client, "not_member", "Not a member of that room!", "/rooms")
		client.CloseWith(websocket.StatusPolicyViolation, "not a member")
		return
	case errors.Is(err, backend.ErrUnavailable):
		g.trySendError(client, "backend_unavailable", "backend unavailable")
		return
	default:
		log.Warn("ws.send.fail", "err", err)
		g.trySendError(client, "send_failed", "Server error!")
		return
	}

	g.enqueue(client, newEnvelope(v1.TypeMessageAck, v1.MessageAckPayload{
		ClientMsgID: p.ClientMsgID,
		MessageID:   id,
	}))
	g.hub.NotifyRoom(client.RoomID)
}

// ---- send helpers ----

func (g *WSGateway) trySendError(client *Client, code, msg string) {
	g.enqueue(client, errorEnvelope(code, msg, ""))
}

func (g *WSGateway) trySendErrorRedirect(client *Client, code, msg, redirect string) {
	g.enqueue(client, errorEnvelope(code, msg, redirect))
}

func (g *WSGateway) enqueue(client *Client, env v1.Envelope) bool {
	return client.offer(env)
}

// drain flushes frames queued before the client was closed, so a final error
// frame reaches the peer ahead of the close.
func (g *WSGateway) drain(ctx context.Context, conn *websocket.Conn, client *Client) {
	for {
		select {
		case env := <-client.Send:
			if err := writeEnvelope(ctx, conn, env, g.cfg.WriteTimeout); err != nil {
				return
			}
		default:
			return
		}
	}
}

// ---- envelope IO ----

func newEnvelope(typ string, payload any) v1.Envelope {
	now := time.Now().UTC()
	b, _ := json.Marshal(payload)
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      NewEnvelopeID(now),
		TS:      now,
		Payload: b,
	}
}

func errorEnvelope(code, msg, redirect string) v1.Envelope {
	return newEnvelope(v1.TypeError, v1.ErrorPayload{Code: code, Message: msg, Redirect: redirect})
}

// errBadJSON marks a frame that arrived intact but did not decode.
var errBadJSON = errors.New("bad json")

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if errors.Is(err, errBadJSON) {
		return readErrBadJSON
	}
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.cfg.OriginRequired {
			return errors.New("missing origin")
		}
		return nil
	}
	if len(g.cfg.AllowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)
	for _, a := range g.cfg.AllowedOrigins {
		if a == "*" {
			return nil
		}
		// Full origin match (scheme + host + optional port).
		if origin == a {
			return nil
		}
		// Host match fallback (ignores port/scheme).
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}
	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	out := make([]string, 0, len(allowed))
	for _, a := range allowed {
		if strings.TrimSpace(a) == "*" {
			// Accept matches patterns with path.Match; "*" covers any host.
			return []string{"*"}
		}
		h := originHostOnly(a)
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
