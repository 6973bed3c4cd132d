package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a re-render notification broadcast to display clients.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     string         `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub fans messages out to connected clients grouped by topic. Display
// clients of the device sit on the empty topic; the document service keys
// subscribers by family id.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*Client]struct{}),
		logger: logger,
	}
}

// Join starts delivering the client's topic to it.
func (h *Hub) Join(c *Client) {
	h.mu.Lock()
	set, ok := h.topics[c.topic]
	if !ok {
		set = make(map[*Client]struct{})
		h.topics[c.topic] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("client joined", "client_id", c.id, "topic", c.topic)
}

// Leave drops the client and closes its send channel. Leaving twice is a
// no-op.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.topics[c.topic]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.topics, c.topic)
	}
	close(c.send)
}

// Broadcast encodes msg once for all display clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}
	h.Publish("", data)
}

// Publish queues data for each client on topic. A client whose buffer is
// full misses the message.
func (h *Hub) Publish(topic string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.topics[topic] {
		if !c.Enqueue(data) {
			h.logger.Warn("send buffer full, message dropped", "client_id", c.id, "topic", topic)
		}
	}
}

// ClientCount is the number of clients across all topics.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.topics {
		n += len(set)
	}
	return n
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
