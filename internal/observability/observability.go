// Package observability broadcasts Progress Renderer activity entries
// to connected operator dashboards over a websocket. It sends only the
// events passed to Hub.Broadcast; the renderer does not call Broadcast
// itself. Grounded
// on the teacher's internal/cluster.SlaveSession (a *websocket.Conn
// plus a write mutex) and SlaveRegistry (mutex-protected
// map-of-sessions), both re-typed here from a bidirectional RPC peer
// to a broadcast-only subscriber.
package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/lijiaxing1997/agentbridge/internal/renderer"
)

// Event is one activity update broadcast to every connected
// dashboard, tagging the renderer's ActivityEntry with which user's
// session produced it.
type Event struct {
	UserID    string                 `json:"user_id"`
	Timestamp time.Time              `json:"timestamp"`
	Entry     renderer.ActivityEntry `json:"entry"`
}

// session wraps one dashboard's websocket connection with a write
// mutex, the same shape as the teacher's SlaveSession.
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *session) writeJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.conn.Close(websocket.StatusNormalClosure, "closing")
	_ = s.conn.CloseRead(ctx)
}

// Hub is the mutex-protected set of connected dashboard sessions, the
// re-typed analog of the teacher's SlaveRegistry.
type Hub struct {
	mu       sync.Mutex
	sessions map[int]*session
	nextID   int
	logger   *slog.Logger
}

// NewHub builds an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{sessions: make(map[int]*session), logger: logger}
}

// Accept registers an already-upgraded websocket connection (see
// Handler) as a broadcast subscriber until the connection closes or
// ctx is cancelled.
func (h *Hub) Accept(ctx context.Context, conn *websocket.Conn) {
	s := &session{conn: conn}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.sessions[id] = s
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.sessions, id)
		h.mu.Unlock()
		s.close()
	}()

	// Dashboards are broadcast-only subscribers; the only read loop
	// purpose is detecting the peer going away.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// Broadcast sends ev to every currently connected dashboard,
// best-effort — a slow or dead peer is dropped on its next failed
// write rather than blocking the sender.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := s.writeJSON(ctx, ev)
		cancel()
		if err != nil {
			h.logger.Debug("observability: dropping dashboard session after write failure", "error", err)
		}
	}
}

// Count reports the number of currently connected dashboards, mostly
// useful for tests and health checks.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
