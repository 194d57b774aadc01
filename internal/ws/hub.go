package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Topics the display screens can subscribe to.
const (
	TopicCarousel = "carousel"
	TopicStats    = "stats"
)

// Hub fans accepted heroes and stat updates out to connected display
// screens.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*websocket.Conn]bool
	log    zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*websocket.Conn]bool),
		log:    logger,
	}
}

func (h *Hub) AddConnection(topic string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*websocket.Conn]bool)
	}
	h.topics[topic][conn] = true
	h.log.Debug().Str("topic", topic).Int("total", len(h.topics[topic])).Msg("ws client connected")
}

func (h *Hub) RemoveConnection(topic string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.topics[topic]; ok {
		delete(conns, conn)
		conn.Close()
		if len(conns) == 0 {
			delete(h.topics, topic)
		}
		h.log.Debug().Str("topic", topic).Msg("ws client disconnected")
	}
}

// Broadcast writes the message to every subscriber of the topic,
// dropping connections that fail.
func (h *Hub) Broadcast(topic string, message WSMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.topics[topic]
	if !ok {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error().Err(err).Msg("ws marshal error")
		return
	}

	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Warn().Err(err).Msg("ws write error")
			conn.Close()
			delete(conns, conn)
		}
	}
}
