package ws

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Broadcast once the hub loop has exited.
var ErrStopped = errors.New("notice hub stopped")

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans installer notices out to every connected stream.
type Hub struct {
	mu        sync.RWMutex
	clients   map[Subscriber]struct{}
	register  chan Subscriber
	unreg     chan Subscriber
	broadcast chan []byte
	done      chan struct{}
}

// NewHub creates a Hub whose loop runs until ctx is cancelled.
func NewHub(ctx context.Context) *Hub {
	h := &Hub{
		clients:   make(map[Subscriber]struct{}),
		register:  make(chan Subscriber),
		unreg:     make(chan Subscriber),
		broadcast: make(chan []byte, 16),
		done:      make(chan struct{}),
	}
	go h.run(ctx)
	return h
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unreg:
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
		case payload := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if err := c.Send(payload); err != nil {
					c.Close()
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a client to the notice stream.
func (h *Hub) Register(client Subscriber) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(client Subscriber) {
	select {
	case h.unreg <- client:
	case <-h.done:
	}
}

// Broadcast queues payload for every client. It gives up when ctx is done or
// the hub has stopped.
func (h *Hub) Broadcast(ctx context.Context, payload []byte) error {
	select {
	case <-h.done:
		return ErrStopped
	default:
	}
	select {
	case h.broadcast <- payload:
		return nil
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Done is closed after the hub loop exits.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
