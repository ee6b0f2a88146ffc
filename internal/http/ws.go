package http

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"masterpay/internal/ledger"
)

// EventHub fans ledger events out to websocket subscribers. It implements
// ledger.Emitter; Emit never blocks — subscribers that fall behind are
// dropped.
type EventHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

type hubClient struct {
	conn *websocket.Conn
	send chan eventMessage
}

type eventMessage struct {
	Type    string `json:"type"`
	At      string `json:"at"`
	Payment any    `json:"payment"`
}

func NewEventHub() *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*hubClient]struct{}),
	}
}

func (h *EventHub) Emit(ev ledger.Event) {
	msg := eventMessage{
		Type:    ev.Type,
		At:      ev.At.Format(time.RFC3339),
		Payment: toPaymentResponse(ev.Payment),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// HandleEvents upgrades the request and streams ledger events until the peer
// disconnects.
func (h *EventHub) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	c := &hubClient{conn: conn, send: make(chan eventMessage, 32)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *EventHub) writeLoop(c *hubClient) {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			break
		}
	}
	_ = c.conn.Close()
}

func (h *EventHub) readLoop(c *hubClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}
