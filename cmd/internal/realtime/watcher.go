package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"studyrooms/cmd/internal/backend"
	"studyrooms/cmd/internal/metrics"
	"studyrooms/cmd/security/token"
	v1 "studyrooms/shared/contracts/realtime/v1"
)

// MessageSource is the backend call a watcher polls.
type MessageSource interface {
	FetchMessages(ctx context.Context, userID int64, roomID string) ([]backend.Message, error)
}

type watchKey struct {
	userID int64
	roomID string
}

// watcher is the poll loop for one (user, room) pair. Every connection of that
// user to that room shares it.
//
// Concurrency guarantees:
//   - add/remove are safe under a concurrent poll.
//   - broadcast never blocks; slow clients are disconnected instead.
//   - only the run goroutine calls the backend.
type watcher struct {
	log      *slog.Logger
	key      watchKey
	src      MessageSource
	interval time.Duration
	retire   func(*watcher)

	ctx    context.Context
	cancel context.CancelFunc
	pokeCh chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	clients map[string]*Client
	last    *v1.Envelope
	digest  string
	outage  bool
}

func newWatcher(parent context.Context, log *slog.Logger, key watchKey, src MessageSource, interval time.Duration, retire func(*watcher)) *watcher {
	ctx, cancel := context.WithCancel(parent)
	return &watcher{
		log:      log,
		key:      key,
		src:      src,
		interval: interval,
		retire:   retire,
		ctx:      ctx,
		cancel:   cancel,
		pokeCh:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		clients:  make(map[string]*Client),
	}
}

// add registers c and hands it the latest snapshot, if one exists yet.
func (w *watcher) add(c *Client) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clients[c.ID] = c
	if w.last != nil {
		c.offer(*w.last)
	}
}

// remove drops c and reports whether the watcher became empty.
func (w *watcher) remove(c *Client) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.clients[c.ID]; !ok {
		return false
	}
	delete(w.clients, c.ID)
	return len(w.clients) == 0
}

func (w *watcher) size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.clients)
}

// poke schedules an immediate poll.
func (w *watcher) poke() {
	select {
	case w.pokeCh <- struct{}{}:
	default:
	}
}

func (w *watcher) stop() { w.cancel() }

func (w *watcher) run() {
	defer close(w.done)
	metrics.RealtimeWatchers.Inc()
	defer metrics.RealtimeWatchers.Dec()

	w.log.Info("realtime.watcher.start", "user_id", w.key.userID, "room_id", w.key.roomID)
	defer w.log.Info("realtime.watcher.stop", "user_id", w.key.userID, "room_id", w.key.roomID)

	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		if !w.poll() {
			return
		}
		select {
		case <-w.ctx.Done():
			return
		case <-t.C:
		case <-w.pokeCh:
		}
	}
}

// poll fetches the room once. It returns false when the watcher must stop.
func (w *watcher) poll() bool {
	msgs, err := w.src.FetchMessages(w.ctx, w.key.userID, w.key.roomID)
	switch {
	case err == nil:
	case w.ctx.Err() != nil:
		return false
	case errors.Is(err, backend.ErrNotMember):
		metrics.RealtimePolls.WithLabelValues("not_member").Inc()
		w.log.Info("realtime.watcher.not_member", "user_id", w.key.userID, "room_id", w.key.roomID)
		w.retire(w)
		w.kickAll(errorEnvelope("not_member", "Not a member of that room!", "/rooms"))
		return false
	case errors.Is(err, backend.ErrUnavailable):
		metrics.RealtimePolls.WithLabelValues("unavailable").Inc()
		w.mu.Lock()
		first := !w.outage
		w.outage = true
		if first {
			w.broadcastLocked(errorEnvelope("backend_unavailable", "backend unavailable", ""))
		}
		w.mu.Unlock()
		if first {
			w.log.Warn("realtime.watcher.backend_unavailable", "room_id", w.key.roomID, "err", err)
		}
		return true
	default:
		metrics.RealtimePolls.WithLabelValues("error").Inc()
		w.log.Warn("realtime.watcher.poll_failed", "room_id", w.key.roomID, "err", err)
		return true
	}

	wire := toWire(msgs)
	digest := digestOf(wire)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.outage = false
	if w.last != nil && digest == w.digest {
		metrics.RealtimePolls.WithLabelValues("unchanged").Inc()
		return true
	}
	env := newEnvelope(v1.TypeRoomSnapshot, v1.RoomSnapshotPayload{
		RoomID:   w.key.roomID,
		Digest:   digest,
		Messages: wire,
	})
	w.digest = digest
	w.last = &env
	w.broadcastLocked(env)
	metrics.RealtimePolls.WithLabelValues("changed").Inc()
	return true
}

func (w *watcher) broadcastLocked(env v1.Envelope) {
	for _, c := range w.clients {
		c.offer(env)
	}
}

// kickAll sends env to every client and closes them.
func (w *watcher) kickAll(env v1.Envelope) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, c := range w.clients {
		c.offer(env)
		c.CloseWith(websocket.StatusPolicyViolation, "not a member")
		delete(w.clients, id)
	}
}

func (w *watcher) closeClients(code websocket.StatusCode, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.clients {
		c.CloseWith(code, reason)
	}
}

func toWire(msgs []backend.Message) []v1.Message {
	out := make([]v1.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, v1.Message{
			MessageID: m.MessageID,
			UserID:    m.UserID,
			Name:      m.Name,
			Message:   m.Message,
			Image:     m.Image,
			Flagged:   m.Flagged,
		})
	}
	return out
}

func digestOf(msgs []v1.Message) string {
	b, _ := json.Marshal(msgs)
	return token.HashSHA256Hex(string(b))
}
