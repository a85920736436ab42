package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Events pushed to attendance displays.
const (
	EventCodeIssued     = "code_issued"
	EventSessionExpired = "session_expired"
)

// Frame is what displays receive on every code lifecycle transition: the
// event plus enough state to render a countdown. The code itself never
// travels over the feed.
type Frame struct {
	Event      string     `json:"event"`
	State      string     `json:"state"`
	Generation uint64     `json:"generation"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type feed struct {
	conns map[*websocket.Conn]bool
	last  []byte
}

// Hub fans lifecycle frames out to every display subscribed to a session.
// Keyed by the session's public id so attendee pages can subscribe without
// learning internal ids. The last frame per session is retained and replayed
// to late subscribers, so a display opened mid-window shows the countdown
// immediately instead of waiting for the next rotation.
type Hub struct {
	mu    sync.Mutex
	feeds map[string]*feed
}

func NewHub() *Hub {
	return &Hub{feeds: make(map[string]*feed)}
}

// Subscribe registers a display for a session's frames and replays the most
// recent frame, if any.
func (h *Hub) Subscribe(publicID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f := h.feeds[publicID]
	if f == nil {
		f = &feed{conns: make(map[*websocket.Conn]bool)}
		h.feeds[publicID] = f
	}
	f.conns[conn] = true
	log.Printf("ws: display subscribed to session %s (total: %d)", publicID, len(f.conns))

	if f.last != nil {
		if err := conn.WriteMessage(websocket.TextMessage, f.last); err != nil {
			h.dropLocked(publicID, f, conn)
		}
	}
}

// Unsubscribe removes a display and closes its connection. The feed itself
// survives with its last frame until the session's process ends, since more
// displays may still join.
func (h *Hub) Unsubscribe(publicID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, ok := h.feeds[publicID]
	if !ok {
		return
	}
	h.dropLocked(publicID, f, conn)
	log.Printf("ws: display left session %s", publicID)
}

// Publish sends a frame to every subscribed display and retains it for late
// subscribers. Displays whose write fails are dropped.
func (h *Hub) Publish(publicID string, frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("ws: marshal frame for session %s: %v", publicID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	f := h.feeds[publicID]
	if f == nil {
		f = &feed{conns: make(map[*websocket.Conn]bool)}
		h.feeds[publicID] = f
	}
	f.last = data

	for conn := range f.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("ws: write to session %s display: %v", publicID, err)
			h.dropLocked(publicID, f, conn)
		}
	}
}

func (h *Hub) dropLocked(publicID string, f *feed, conn *websocket.Conn) {
	delete(f.conns, conn)
	conn.Close()
	if len(f.conns) == 0 && f.last == nil {
		delete(h.feeds, publicID)
	}
}
