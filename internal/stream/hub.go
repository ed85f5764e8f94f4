package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/yinsee/internal/kv"
	"github.com/example/yinsee/internal/models"
	"github.com/example/yinsee/internal/observability"
)

const writeWait = 5 * time.Second

// StatsFunc computes the snapshot pushed to clients.
type StatsFunc func(ctx context.Context) models.Stats

// Snapshot is the message sent on every change.
type Snapshot struct {
	Stats models.Stats `json:"stats"`
	At    time.Time    `json:"at"`
}

// session is one connected websocket client.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

// Hub fans stats snapshots out to websocket clients whenever a watched key
// changes. Delivery is advisory: a failed send drops that client.
type Hub struct {
	stats    StatsFunc
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[*session]struct{}
	closed   bool

	changed chan struct{}
}

func NewHub(stats StatsFunc, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		stats:    stats,
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		sessions: make(map[*session]struct{}),
		changed:  make(chan struct{}, 1),
	}
}

// Watch subscribes the hub to keys in s. The returned func unsubscribes.
func (h *Hub) Watch(s *kv.Store, keys ...string) func() {
	cancels := make([]func(), 0, len(keys))
	for _, k := range keys {
		cancels = append(cancels, s.Subscribe(k, func(string) { h.Notify() }))
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

// Notify schedules a broadcast. Bursts collapse into one snapshot.
func (h *Hub) Notify() {
	select {
	case h.changed <- struct{}{}:
	default:
	}
}

// Run broadcasts on every notification until ctx is done, then closes all
// client connections.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-h.changed:
			h.Broadcast(h.snapshot(ctx))
		}
	}
}

func (h *Hub) snapshot(ctx context.Context) Snapshot {
	return Snapshot{Stats: h.stats(ctx), At: time.Now().UTC()}
}

// Broadcast sends v to every client, dropping the ones that fail.
func (h *Hub) Broadcast(v any) {
	h.mu.RLock()
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if err := s.send(v); err != nil {
			h.logger.Warn("stats stream send failed", "remote", s.conn.RemoteAddr().String(), "error", err)
			h.remove(s)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// ServeHTTP upgrades the request, sends the current snapshot and then holds
// the connection until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	s := &session{conn: conn}
	if !h.add(s) {
		_ = conn.Close()
		return
	}
	if err := s.send(h.snapshot(r.Context())); err != nil {
		h.remove(s)
		return
	}
	for {
		if _, _, err := conn.NextReader(); err != nil {
			h.remove(s)
			return
		}
	}
}

func (h *Hub) add(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[s] = struct{}{}
	observability.StreamClients.Set(float64(len(h.sessions)))
	return true
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	delete(h.sessions, s)
	observability.StreamClients.Set(float64(len(h.sessions)))
	h.mu.Unlock()
	if ok {
		_ = s.conn.Close()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	h.closed = true
	sessions := h.sessions
	h.sessions = make(map[*session]struct{})
	observability.StreamClients.Set(0)
	h.mu.Unlock()
	for s := range sessions {
		_ = s.conn.Close()
	}
}
