package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
)

// Broker fans events out to Server-Sent Events clients and to any other
// subscriber (the WebSocket hub registers through Subscribe).
type Broker struct {
	clients    map[chan []byte]bool
	register   chan chan []byte
	unregister chan chan []byte
	broadcast  chan []byte
	mu         sync.RWMutex
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		clients:    make(map[chan []byte]bool),
		register:   make(chan chan []byte),
		unregister: make(chan chan []byte),
		broadcast:  make(chan []byte, 1000),
	}
}

// Run starts the broker loop
func (b *Broker) Run() {
	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			b.mu.Unlock()
			log.Printf("Event client connected. Total: %d", len(b.clients))

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client)
				log.Printf("Event client disconnected. Total: %d", len(b.clients))
			}
			b.mu.Unlock()

		case msg := <-b.broadcast:
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client <- msg:
				default:
					// Skip if client buffer is full to prevent blocking
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Subscribe registers a new consumer channel. The caller must Unsubscribe
// when done; the broker closes the channel at that point.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 10)
	b.register <- ch
	return ch
}

// Unsubscribe removes a consumer channel
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.unregister <- ch
}

// ServeHTTP handles the SSE endpoint
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	clientChan := b.Subscribe()
	notify := r.Context().Done()

	for {
		select {
		case <-notify:
			b.Unsubscribe(clientChan)
			return
		case msg := <-clientChan:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			w.(http.Flusher).Flush()
		}
	}
}

// Broadcast sends an event to all connected clients
func (b *Broker) Broadcast(event string, payload interface{}) {
	data := map[string]interface{}{
		"event":   event,
		"payload": payload,
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshalling broadcast message: %v", err)
		return
	}

	b.BroadcastRaw(jsonBytes)
}

// BroadcastRaw sends a pre-encoded message to all connected clients. The
// Redis pub/sub bridge uses this so messages from other instances pass
// through unchanged.
func (b *Broker) BroadcastRaw(msg []byte) {
	select {
	case b.broadcast <- msg:
	default:
		// Drop if broadcast buffer full
	}
}
