package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gin-gonic/gin"
)

// clientBufferSize bounds each subscriber's queue. A client that falls
// this far behind starts losing events; the event store remains the
// source of truth for anything missed.
const clientBufferSize = 32

type message struct {
	Event string
	Data  interface{}
}

// client is one open dashboard connection for an account.
type client struct {
	platform string
	username string
	send     chan message
}

// Manager fans out events to connected dashboard sessions. Sessions
// are keyed by (platform, username); an event published for a key with
// no open session is dropped.
type Manager struct {
	mu         sync.RWMutex
	clients    map[string]map[*client]struct{}
	register   chan *client
	unregister chan *client
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run processes register/unregister requests until ctx is cancelled.
// Run as a goroutine.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-m.register:
			key := accountKey(c.platform, c.username)
			m.mu.Lock()
			if m.clients[key] == nil {
				m.clients[key] = make(map[*client]struct{})
			}
			m.clients[key][c] = struct{}{}
			m.mu.Unlock()
			log.Printf("[SSE] Client connected for %s", key)
		case c := <-m.unregister:
			key := accountKey(c.platform, c.username)
			m.mu.Lock()
			if set, ok := m.clients[key]; ok {
				if _, ok := set[c]; ok {
					delete(set, c)
					close(c.send)
					if len(set) == 0 {
						delete(m.clients, key)
					}
				}
			}
			m.mu.Unlock()
			log.Printf("[SSE] Client disconnected for %s", key)
		}
	}
}

// SendToAccount pushes an event to every open session of one account.
// Slow sessions are skipped rather than allowed to block the caller.
func (m *Manager) SendToAccount(platform, username, event string, data interface{}) {
	key := accountKey(platform, username)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for c := range m.clients[key] {
		select {
		case c.send <- message{Event: event, Data: data}:
		default:
			log.Printf("[SSE] Dropping %s event for slow client on %s", event, key)
		}
	}
}

// SubscriberCount returns the number of open sessions for an account.
func (m *Manager) SubscriberCount(platform, username string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[accountKey(platform, username)])
}

// ServeHTTP streams events for one account over an SSE connection
// until the client goes away.
func (m *Manager) ServeHTTP(c *gin.Context, platform, username string) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	cl := &client{
		platform: platform,
		username: username,
		send:     make(chan message, clientBufferSize),
	}
	m.register <- cl
	defer func() { m.unregister <- cl }()

	flusher, ok := c.Writer.(interface{ Flush() })
	if !ok {
		return
	}

	// Initial comment so proxies open the stream immediately.
	fmt.Fprint(c.Writer, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case msg, ok := <-cl.send:
			if !ok {
				return
			}
			payload, err := json.Marshal(msg.Data)
			if err != nil {
				log.Printf("[SSE] Failed to marshal %s event: %v", msg.Event, err)
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", msg.Event, payload)
			flusher.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func accountKey(platform, username string) string {
	return platform + "/" + username
}
