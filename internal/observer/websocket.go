package observer

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"flowforge-engine/internal/engine"
	"flowforge-engine/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// wireEvent is the JSON shape sent to WebSocket clients as one text
// message per event: an instance's id/state plus the count and kind of objects
// it mutated this tick. ChangeEvent itself carries live engine.Block/
// engine.Line references that aren't meaningfully JSON-able, so the
// hub flattens them before broadcasting.
type wireEvent struct {
	InstanceID     int    `json:"instanceId"`
	State          string `json:"state"`
	ModifiedBlocks int    `json:"modifiedBlocks"`
	ModifiedLines  int    `json:"modifiedLines"`
}

// Hub fans out change events to every connected WebSocket client. It
// implements engine.Listener, so callers register one Hub per
// instance (or a shared Hub across every instance the server cares
// about).
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	log     logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop{}
	}
	return &Hub{clients: make(map[*websocket.Conn]chan []byte), log: log}
}

// OnEvent implements engine.Listener: it never blocks the tick it's
// called from — writes to a full client buffer are dropped rather than
// waited on.
func (h *Hub) OnEvent(event engine.ChangeEvent) {
	we := wireEvent{InstanceID: event.Instance.InstanceID(), State: event.Instance.State().String()}
	for _, m := range event.ModifiedObjects {
		switch m.(type) {
		case engine.Block:
			we.ModifiedBlocks++
		case *engine.Line:
			we.ModifiedLines++
		}
	}

	payload, err := json.Marshal(we)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logger.Fields{"error": err.Error()})
		return
	}

	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	// Drain client reads in the background so Gorilla's ping/pong and
	// close-frame handling keep working; clients aren't expected to
	// send anything meaningful.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for payload := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
