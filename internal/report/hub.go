package report

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yethikrishna/levelcode-sub001/internal/hooks"
)

// hubBufferSize bounds a client's outbound queue before it is dropped for
// being too slow.
const hubBufferSize = 256

// Hub fans lifecycle hook events out to connected websocket clients so
// dashboard-style consumers can observe team activity live.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*hubClient]bool
	upgrader websocket.Upgrader
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a Hub. Call Attach to wire it to an Emitter.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*hubClient]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Attach subscribes h to emitter so every dispatched lifecycle event is
// broadcast to connected clients as JSON.
func (h *Hub) Attach(emitter *hooks.Emitter) hooks.Unsubscribe {
	return emitter.OnTeamHookEvent(func(event hooks.Event) {
		data, err := json.Marshal(event)
		if err != nil {
			return
		}
		h.broadcast(data)
	})
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			close(c.send)
			delete(h.clients, c)
		}
	}
}

// ServeHTTP upgrades the connection and registers the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := &hubClient{conn: conn, send: make(chan []byte, hubBufferSize)}
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	go h.writePump(client)
	h.readPump(client)
}

// readPump discards inbound messages (this stream is one-way) until the
// client disconnects, at which point it unregisters and stops writePump by
// closing send.
func (h *Hub) readPump(client *hubClient) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.send)
		}
		h.mu.Unlock()
		client.conn.Close()
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *hubClient) {
	for msg := range client.send {
		if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
