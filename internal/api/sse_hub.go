package api

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// DefaultTopic is the stream sweep progress is published on
const DefaultTopic = "sweep"

// SSEClient represents a connected SSE client
type SSEClient struct {
	Topic   string
	Channel chan SweepEvent
}

// SweepEvent is one progress notification
type SweepEvent struct {
	Topic     string                 `json:"topic"`
	EventType string                 `json:"event_type"`
	RunID     string                 `json:"run_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// SSEHub fans sweep events out to Server-Sent Events clients by topic
type SSEHub struct {
	clients    map[string]map[chan SweepEvent]bool
	clientsMu  sync.RWMutex
	register   chan SSEClient
	unregister chan SSEClient
	broadcast  chan SweepEvent
	done       chan struct{}
	closeOnce  sync.Once
	logger     zerolog.Logger
}

// NewSSEHub creates a hub and starts its dispatch loop
func NewSSEHub(logger zerolog.Logger) *SSEHub {
	hub := &SSEHub{
		clients:    make(map[string]map[chan SweepEvent]bool),
		register:   make(chan SSEClient, 10),
		unregister: make(chan SSEClient, 10),
		broadcast:  make(chan SweepEvent, 100),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "sse").Logger(),
	}

	go hub.run()
	return hub
}

// Close stops the dispatch loop
func (h *SSEHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *SSEHub) run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.clientsMu.Lock()
			if h.clients[client.Topic] == nil {
				h.clients[client.Topic] = make(map[chan SweepEvent]bool)
			}
			h.clients[client.Topic][client.Channel] = true
			h.logger.Debug().Str("topic", client.Topic).Int("clients", len(h.clients[client.Topic])).Msg("client registered")
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if clients, exists := h.clients[client.Topic]; exists {
				if clients[client.Channel] {
					delete(clients, client.Channel)
					close(client.Channel)
				}
				if len(clients) == 0 {
					delete(h.clients, client.Topic)
				}
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for clientChan := range h.clients[event.Topic] {
				select {
				case clientChan <- event:
				default:
					h.logger.Warn().Str("topic", event.Topic).Msg("client channel full, skipping event")
				}
			}
			h.clientsMu.RUnlock()
		}
	}
}

// Broadcast sends an event to every client of its topic
func (h *SSEHub) Broadcast(event SweepEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn().Str("event_type", event.EventType).Msg("broadcast channel full, dropping event")
	}
}

// Subscribe registers a client channel; cancel unregisters it
func (h *SSEHub) Subscribe(topic string) (events <-chan SweepEvent, cancel func()) {
	ch := make(chan SweepEvent, 10)
	client := SSEClient{Topic: topic, Channel: ch}
	h.register <- client
	return ch, func() { h.unregister <- client }
}

// ClientCount returns the number of active clients for a topic
func (h *SSEHub) ClientCount(topic string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[topic])
}

// HandleSSE streams events for ?topic= (default "sweep")
func (h *SSEHub) HandleSSE(c *gin.Context) {
	topic := c.DefaultQuery("topic", DefaultTopic)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events, cancel := h.Subscribe(topic)
	defer cancel()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Error().Err(err).Msg("failed to marshal event")
				return true
			}
			c.SSEvent(event.EventType, string(payload))
			return true

		case <-time.After(30 * time.Second):
			c.SSEvent("ping", `{"status": "alive"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}
