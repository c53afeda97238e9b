package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/brensch/tetrai/trainer"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	subscriberBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub broadcasts training progress to any number of subscribers. Publish
// never blocks: a subscriber whose buffer is full misses that update.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan trainer.Progress
	nextID int
	last   *trainer.Progress
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan trainer.Progress)}
}

// Subscribe returns a channel of future updates and a cancel func that
// closes it.
func (h *Hub) Subscribe() (<-chan trainer.Progress, func()) {
	ch := make(chan trainer.Progress, subscriberBuffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(p trainer.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &p
	for _, ch := range h.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

// Last returns the most recent update, if any.
func (h *Hub) Last() (trainer.Progress, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return trainer.Progress{}, false
	}
	return *h.last, true
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// serveWS streams progress as JSON text frames until the client goes away.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	updates, cancel := s.hub.Subscribe()
	defer cancel()

	// The read side only exists to notice closes and answer pongs.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case p, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(p); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveSSE streams progress as server-sent events.
func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	updates, cancel := s.hub.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case p, ok := <-updates:
			if !ok {
				return
			}
			b, err := json.Marshal(p)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", p.Kind, b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
