// Package main provides a CI-friendly smoke test for the Studyrooms web tier.
//
// It validates:
//   - cookie login through /api/auth/login
//   - room creation with the double-submit CSRF header
//   - handshake + subprotocol selection on /ws/rooms/{roomId}
//   - initial room.snapshot and hello/ack
//   - send -> ack
//   - the follow-up snapshot reaching a second tab of the same user
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"

	v1 "studyrooms/shared/contracts/realtime/v1"
)

const maxReadBytes = 8 << 20

type smokeClient struct {
	name   string
	conn   *websocket.Conn
	connID string

	inbox chan v1.Envelope
	errCh chan error
}

type session struct {
	base   *url.URL
	http   *http.Client
	cookie string
	csrf   string
}

func main() {
	var (
		baseURL  = flag.String("base", "http://127.0.0.1:8080", "Studyrooms base URL")
		origin   = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		email    = flag.String("email", "smoke@example.com", "Account email")
		password = flag.String("password", "smoke-password", "Account password")
		roomID   = flag.String("room", "", "Room code to use; empty creates a fresh room")
		signup   = flag.Bool("signup", true, "Create the account first (409 is fine)")
		text     = flag.String("text", "hello studyrooms 👋", "Message text to send")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	base, err := url.Parse(*baseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		fatalf("invalid -base: %q", *baseURL)
	}
	if strings.TrimSpace(*origin) == "" {
		fatalf("invalid -origin: empty")
	}

	root := context.Background()
	s := newSession(base, *timeout)

	if *signup {
		s.mustSignup(root, *email, *password)
	}
	s.mustLogin(root, *email, *password)

	room := strings.ToLower(strings.TrimSpace(*roomID))
	if room == "" {
		room = s.mustCreateRoom(root, fmt.Sprintf("smoke %d", time.Now().Unix()%100000))
	}
	if *verbose {
		fmt.Printf("logged in as %s, room=%s\n", *email, room)
	}

	wsURL := wsURLFor(base, room)
	a := mustConnect(root, "A", wsURL, *origin, s.cookie, *timeout)
	defer closeWS(a.conn)
	b := mustConnect(root, "B", wsURL, *origin, s.cookie, *timeout)
	defer closeWS(b.conn)

	if *verbose {
		fmt.Printf("connected: A=%s B=%s origin=%q\n", a.connID, b.connID, *origin)
	}

	clientMsgID := fmt.Sprintf("cmsg-%d", time.Now().UnixNano())
	msgID := mustSendAndAssertAck(root, a, clientMsgID, *text, *timeout)

	mustSnapshotContains(root, a, msgID, *text, *timeout)
	mustSnapshotContains(root, b, msgID, *text, *timeout)

	fmt.Printf("OK: A=%s B=%s room=%s message_id=%d\n", a.connID, b.connID, room, msgID)
}

// ---- HTTP steps ----

func newSession(base *url.URL, timeout time.Duration) *session {
	jar, _ := cookiejar.New(nil)
	return &session{base: base, http: &http.Client{Jar: jar, Timeout: timeout}}
}

func (s *session) post(ctx context.Context, path string, body any) (int, []byte) {
	b, err := json.Marshal(body)
	if err != nil {
		fatalf("marshal %s: %v", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base.JoinPath(path).String(), bytes.NewReader(b))
	if err != nil {
		fatalf("request %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.csrf != "" {
		req.Header.Set("X-CSRF-Token", s.csrf)
	}
	return s.do(req)
}

func (s *session) get(ctx context.Context, path string) (int, []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base.JoinPath(path).String(), nil)
	if err != nil {
		fatalf("request %s: %v", path, err)
	}
	return s.do(req)
}

func (s *session) do(req *http.Request) (int, []byte) {
	resp, err := s.http.Do(req)
	if err != nil {
		fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, b
}

func (s *session) mustSignup(ctx context.Context, email, password string) {
	code, body := s.post(ctx, "/api/auth/signup", map[string]string{
		"email":     email,
		"password":  password,
		"firstName": "Smoke",
		"lastName":  "Test",
	})
	if code != http.StatusCreated && code != http.StatusConflict {
		fatalf("signup: status=%d body=%s", code, body)
	}
}

func (s *session) mustLogin(ctx context.Context, email, password string) {
	code, body := s.post(ctx, "/api/auth/login", map[string]string{"email": email, "password": password})
	if code != http.StatusOK {
		fatalf("login: status=%d body=%s", code, body)
	}
	for _, c := range s.http.Jar.Cookies(s.base) {
		switch c.Name {
		case "session":
			s.cookie = c.Value
		case "csrf":
			s.csrf = c.Value
		}
	}
	if s.cookie == "" || s.csrf == "" {
		fatalf("login: session or csrf cookie missing")
	}
}

func (s *session) mustCreateRoom(ctx context.Context, title string) string {
	code, body := s.post(ctx, "/api/rooms", map[string]string{"title": title})
	if code != http.StatusCreated {
		fatalf("create room: status=%d body=%s", code, body)
	}

	code, body = s.get(ctx, "/api/rooms")
	if code != http.StatusOK {
		fatalf("list rooms: status=%d body=%s", code, body)
	}
	var list struct {
		Rooms []struct {
			RoomID string `json:"roomId"`
			Title  string `json:"title"`
		} `json:"rooms"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		fatalf("list rooms: %v", err)
	}
	for _, r := range list.Rooms {
		if r.Title == title {
			return r.RoomID
		}
	}
	fatalf("created room %q not listed", title)
	return ""
}

func wsURLFor(base *url.URL, roomID string) string {
	u := *base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws/rooms/" + roomID
	return u.String()
}

// ---- WebSocket steps ----

func mustConnect(parent context.Context, name, wsURL, origin, cookie string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	h.Set("Origin", origin)
	h.Set("Cookie", "session="+cookie)

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}
	if got := conn.Subprotocol(); got != v1.Subprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, v1.Subprotocol)
	}

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan v1.Envelope, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()

	// Joining pushes the current message list before anything else.
	c.mustReadUntilType(parent, v1.TypeRoomSnapshot, stepTimeout, nil)

	mustWriteWithTimeout(parent, conn, v1.Envelope{
		V:       v1.Version,
		Type:    v1.TypeHello,
		ID:      fmt.Sprintf("%s-hello", name),
		TS:      time.Now().UTC(),
		Payload: mustJSON(v1.HelloPayload{}),
	}, stepTimeout)

	ack := c.mustReadUntilType(parent, v1.TypeHelloAck, stepTimeout, map[string]struct{}{v1.TypeRoomSnapshot: {}})

	var p v1.HelloAckPayload
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		fatalf("unmarshal hello.ack payload (%s): %v", name, err)
	}
	if strings.TrimSpace(p.ConnectionID) == "" {
		fatalf("hello.ack missing connection_id (%s)", name)
	}
	c.connID = p.ConnectionID

	return c
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			_, data, err := c.conn.Read(context.Background())
			if err != nil {
				c.fail(err)
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				c.fail(fmt.Errorf("bad json: %w", err))
				return
			}
			if err := env.Validate(); err != nil {
				c.fail(fmt.Errorf("bad envelope: %w", err))
				return
			}

			select {
			case c.inbox <- env:
			default:
				c.fail(errors.New("inbox overflow: consumer too slow"))
				return
			}
		}
	}()
}

func (c *smokeClient) fail(err error) {
	select {
	case c.errCh <- err:
	default:
	}
}

func mustSendAndAssertAck(parent context.Context, c *smokeClient, clientMsgID, text string, stepTimeout time.Duration) int64 {
	mustWriteWithTimeout(parent, c.conn, v1.Envelope{
		V:       v1.Version,
		Type:    v1.TypeMessageSend,
		ID:      clientMsgID,
		TS:      time.Now().UTC(),
		Payload: mustJSON(v1.MessageSendPayload{ClientMsgID: clientMsgID, Content: text}),
	}, stepTimeout)

	ack := c.mustReadUntilType(parent, v1.TypeMessageAck, stepTimeout, map[string]struct{}{v1.TypeRoomSnapshot: {}})

	var p v1.MessageAckPayload
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		fatalf("unmarshal message.ack payload (%s): %v", c.name, err)
	}
	if p.ClientMsgID != clientMsgID {
		fatalf("message.ack client_msg_id mismatch (%s): got=%q want=%q", c.name, p.ClientMsgID, clientMsgID)
	}
	if p.MessageID <= 0 {
		fatalf("message.ack missing message_id (%s)", c.name)
	}
	return p.MessageID
}

// mustSnapshotContains waits for a snapshot that includes messageID.
func mustSnapshotContains(parent context.Context, c *smokeClient, messageID int64, text string, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		env := c.mustReadUntilType(ctx, v1.TypeRoomSnapshot, stepTimeout, map[string]struct{}{v1.TypeMessageAck: {}})
		var p v1.RoomSnapshotPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			fatalf("unmarshal room.snapshot payload (%s): %v", c.name, err)
		}
		for _, m := range p.Messages {
			if m.MessageID != messageID {
				continue
			}
			if m.Message != text && !m.Flagged {
				fatalf("snapshot text mismatch (%s): got=%q want=%q", c.name, m.Message, text)
			}
			return
		}
	}
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration, skipTypes map[string]struct{}) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			if env.Type == wantType {
				return env
			}
			if env.Type == v1.TypeError {
				var ep v1.ErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			}
			if _, ok := skipTypes[env.Type]; ok {
				continue
			}
			fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, wantType)
		}
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, env v1.Envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		fatalf("marshal payload: %v", err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
