package services

import (
	"sync"
)

// Hub topics
const (
	TopicActivity     = "activity"
	TopicNotification = "notification"
	TopicMessage      = "message"
	TopicInvalidate   = "invalidate"
)

// Event is a realtime update pushed to SSE clients.
// ProfileID 0 broadcasts to every subscriber of the topic.
type Event struct {
	Topic     string      `json:"topic"`
	ProfileID uint        `json:"-"`
	Data      interface{} `json:"data"`
}

type subscriber struct {
	profileID uint
	topics    map[string]bool
	ch        chan Event
}

// SSEHub manages SSE client connections and event fan-out
type SSEHub struct {
	clients map[string]*subscriber
	mu      sync.RWMutex
}

// NewSSEHub creates a new SSE hub instance
func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]*subscriber),
	}
}

// Subscribe registers a client for the given topics and returns its event channel.
// With no topics the client receives every event addressed to it.
func (h *SSEHub) Subscribe(clientID string, profileID uint, topics ...string) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{
		profileID: profileID,
		topics:    make(map[string]bool, len(topics)),
		// Create buffered channel to prevent blocking
		ch: make(chan Event, 100),
	}
	for _, topic := range topics {
		sub.topics[topic] = true
	}
	h.clients[clientID] = sub
	return sub.ch
}

// Unsubscribe removes a client from the hub
func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.clients[clientID]; ok {
		close(sub.ch)
		delete(h.clients, clientID)
	}
}

// Publish delivers an event to every matching client
func (h *SSEHub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.clients {
		if len(sub.topics) > 0 && !sub.topics[event.Topic] {
			continue
		}
		if event.ProfileID != 0 && sub.profileID != event.ProfileID {
			continue
		}
		// Non-blocking send - drop event if client buffer is full
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// ClientCount returns the number of connected clients
func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Global SSE Hub instance
var globalSSEHub *SSEHub
var sseHubOnce sync.Once

// GetSSEHub returns the global SSE hub singleton
func GetSSEHub() *SSEHub {
	sseHubOnce.Do(func() {
		globalSSEHub = NewSSEHub()
	})
	return globalSSEHub
}

// publish tolerates a nil hub so services work without realtime delivery.
func publish(h *SSEHub, event Event) {
	if h != nil {
		h.Publish(event)
	}
}

// Invalidation tells clients a cached list is stale.
type Invalidation struct {
	Resource string `json:"resource"`
	ID       uint   `json:"id,omitempty"`
}

func publishInvalidation(h *SSEHub, resource string, id uint) {
	publish(h, Event{Topic: TopicInvalidate, Data: Invalidation{Resource: resource, ID: id}})
}
