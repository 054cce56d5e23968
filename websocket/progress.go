// Package websocket exposes backtest progress events over a WebSocket
// endpoint, mirroring what the SSE stream carries for clients that prefer a
// socket.
package websocket

import (
	"log"
	"net/http"
	"time"

	"forecast-backtest/realtime"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// ProgressHub upgrades HTTP requests and relays broker events to each
// connected socket.
type ProgressHub struct {
	broker   *realtime.Broker
	upgrader websocket.Upgrader
}

// NewProgressHub creates a hub bound to the event broker
func NewProgressHub(broker *realtime.Broker) *ProgressHub {
	return &ProgressHub{
		broker: broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards are served from another origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles the WebSocket progress endpoint
func (h *ProgressHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️  WebSocket upgrade failed: %v", err)
		return
	}

	events := h.broker.Subscribe()
	done := make(chan struct{})

	// Reader exists only to detect the close handshake
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go h.writeLoop(conn, events, done)
}

func (h *ProgressHub) writeLoop(conn *websocket.Conn, events chan []byte, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.broker.Unsubscribe(events)
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
