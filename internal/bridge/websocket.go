package bridge

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mkefalas/sigmalink/internal/logging"
	"github.com/mkefalas/sigmalink/internal/poll"
	"github.com/mkefalas/sigmalink/internal/transcript"
)

const (
	// Time allowed to write a message to a subscriber.
	writeWait = 10 * time.Second

	// Time allowed between reads from a subscriber before it is dropped.
	pongWait = 60 * time.Second

	// Ping period, must be under pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// streamEvent is one message on the /api/stream socket.
type streamEvent struct {
	Available bool                 `json:"available"`
	Snapshot  *transcript.Snapshot `json:"snapshot,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// subscriber wraps one stream connection. The mutex serializes writes:
// the hub's pump goroutine and the HTTP handler doing the last-event
// replay may target the same connection, and the websocket library
// allows only a single writer at a time.
type subscriber struct {
	conn *websocket.Conn

	mu sync.Mutex
}

func (s *subscriber) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *subscriber) writePing() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// hub fans poll updates out to every connected stream subscriber.
type hub struct {
	updates  <-chan poll.Update
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*subscriber]bool
	last  *streamEvent
}

func newHub(updates <-chan poll.Update) *hub {
	return &hub{
		updates: updates,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The bridge serves the local network; same-origin rules for
			// browsers do not apply to panel dashboards.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*subscriber]bool),
	}
}

// run pumps coordinator updates to subscribers until ctx is cancelled.
func (h *hub) run(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-h.updates:
			if !ok {
				return
			}
			event := &streamEvent{Available: u.Available, Snapshot: u.Snapshot}
			if u.Err != nil {
				event.Error = u.Err.Error()
			}
			h.broadcast(event)
		case <-ticker.C:
			h.ping()
		}
	}
}

func (h *hub) broadcast(event *streamEvent) {
	h.mu.Lock()
	h.last = event
	subs := make([]*subscriber, 0, len(h.conns))
	for s := range h.conns {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		if err := s.writeJSON(event); err != nil {
			logging.Debug("dropping stream subscriber", zap.Error(err))
			h.remove(s)
		}
	}
}

func (h *hub) ping() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.conns))
	for s := range h.conns {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		if err := s.writePing(); err != nil {
			h.remove(s)
		}
	}
}

func (h *hub) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug("stream upgrade failed", zap.Error(err))
		return
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	sub := &subscriber{conn: conn}

	h.mu.Lock()
	h.conns[sub] = true
	last := h.last
	h.mu.Unlock()

	// New subscribers get the latest event immediately instead of waiting
	// out a poll interval.
	if last != nil {
		if err := sub.writeJSON(last); err != nil {
			h.remove(sub)
			return
		}
	}

	// Reader loop: subscribers send nothing meaningful, but reading is what
	// detects a closed peer.
	go func() {
		defer h.remove(sub)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}()
}

func (h *hub) remove(sub *subscriber) {
	h.mu.Lock()
	_, present := h.conns[sub]
	delete(h.conns, sub)
	h.mu.Unlock()
	if present {
		_ = sub.conn.Close()
	}
}

// closeAll disconnects every subscriber, used during shutdown.
func (h *hub) closeAll() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.conns))
	for s := range h.conns {
		subs = append(subs, s)
	}
	h.conns = make(map[*subscriber]bool)
	h.mu.Unlock()

	for _, s := range subs {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = s.conn.Close()
	}
}
