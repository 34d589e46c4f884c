package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// ErrHubClosed is returned by Join after Close.
var ErrHubClosed = errors.New("realtime hub closed")

// Hub owns the watchers, one per (user, room), and routes clients to them.
type Hub struct {
	log *slog.Logger
	cfg Config
	src MessageSource

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	watchers map[watchKey]*watcher
}

// NewHub constructs a Hub that polls src.
func NewHub(log *slog.Logger, cfg Config, src MessageSource) *Hub {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		log:      log,
		cfg:      cfg.withDefaults(),
		src:      src,
		ctx:      ctx,
		cancel:   cancel,
		watchers: make(map[watchKey]*watcher),
	}
}

// Join attaches c to the watcher for its (user, room), starting one if needed.
func (h *Hub) Join(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx.Err() != nil {
		return ErrHubClosed
	}

	key := watchKey{userID: c.UserID, roomID: c.RoomID}
	w, ok := h.watchers[key]
	if !ok {
		w = newWatcher(h.ctx, h.log, key, h.src, h.cfg.PollInterval, h.retire)
		h.watchers[key] = w
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			w.run()
		}()
	}
	w.add(c)
	return nil
}

// Leave detaches c. The watcher stops when its last client leaves.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := watchKey{userID: c.UserID, roomID: c.RoomID}
	w, ok := h.watchers[key]
	if !ok {
		return
	}
	if w.remove(c) {
		delete(h.watchers, key)
		w.stop()
	}
}

// Poke triggers an immediate poll for one (user, room).
func (h *Hub) Poke(userID int64, roomID string) {
	h.mu.Lock()
	w := h.watchers[watchKey{userID: userID, roomID: roomID}]
	h.mu.Unlock()
	if w != nil {
		w.poke()
	}
}

// NotifyRoom triggers an immediate poll for every watcher of roomID.
func (h *Hub) NotifyRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, w := range h.watchers {
		if key.roomID == roomID {
			w.poke()
		}
	}
}

// Watchers reports the number of active watchers.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

// Close stops every watcher and waits for them to exit.
func (h *Hub) Close() {
	h.cancel()
	h.mu.Lock()
	for key, w := range h.watchers {
		w.closeClients(websocket.StatusGoingAway, "server shutting down")
		delete(h.watchers, key)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// retire drops w from the map without waiting for its clients to leave.
func (h *Hub) retire(w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watchers[w.key] == w {
		delete(h.watchers, w.key)
	}
}
