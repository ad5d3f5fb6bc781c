package stream

import (
	"sync"
)

// Hub tracks open stream clients so they can be closed on shutdown.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]string
	closed  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]string)}
}

// Register adds c under bookingID. It returns false, closing c, once the hub
// has been shut down.
func (h *Hub) Register(bookingID string, c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		c.Close()
		return false
	}
	h.clients[c] = bookingID
	return true
}

// Unregister removes c and closes it.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.Close()
}

// Count returns the number of clients watching bookingID, or all clients
// when bookingID is empty.
func (h *Hub) Count(bookingID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if bookingID == "" {
		return len(h.clients)
	}
	n := 0
	for _, id := range h.clients {
		if id == bookingID {
			n++
		}
	}
	return n
}

// CloseBooking disconnects every client watching bookingID.
func (h *Hub) CloseBooking(bookingID string) {
	h.mu.Lock()
	var victims []*Client
	for c, id := range h.clients {
		if id == bookingID {
			victims = append(victims, c)
			delete(h.clients, c)
		}
	}
	h.mu.Unlock()
	for _, c := range victims {
		c.Close()
	}
}

// Shutdown closes all clients and rejects new registrations.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	victims := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		victims = append(victims, c)
	}
	h.clients = make(map[*Client]string)
	h.mu.Unlock()
	for _, c := range victims {
		c.Close()
	}
}
