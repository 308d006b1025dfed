package wsx

import (
	"sync"

	"github.com/astralabs/astra-backend/pkg/logx"
)

// Conn is the minimal socket surface the hub needs.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Hub tracks live sockets grouped into per-user rooms. A user may hold
// several sockets at once; events go to all of them.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Conn]struct{})}
}

// Join adds a socket to the user's room.
func (h *Hub) Join(userID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[userID]
	if !ok {
		room = make(map[Conn]struct{})
		h.rooms[userID] = room
	}
	room[conn] = struct{}{}
}

// Leave removes a socket from the user's room, dropping the room when empty.
func (h *Hub) Leave(userID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[userID]
	if !ok {
		return
	}
	delete(room, conn)
	if len(room) == 0 {
		delete(h.rooms, userID)
	}
}

// HasListeners reports whether the user has at least one live socket.
func (h *Hub) HasListeners(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID]) > 0
}

// Emit writes the event to every socket in the user's room and returns how
// many writes succeeded. Sockets that fail to write are evicted.
func (h *Hub) Emit(userID string, event Event) int {
	h.mu.RLock()
	room := h.rooms[userID]
	conns := make([]Conn, 0, len(room))
	for conn := range room {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range conns {
		if err := conn.WriteJSON(event); err != nil {
			logx.Warnf("wsx: dropping dead socket for %s: %v", userID, err)
			h.Leave(userID, conn)
			_ = conn.Close()
			continue
		}
		delivered++
	}
	return delivered
}
