package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Event names pushed to terminals.
const (
	EventQueueChanged = "queue_changed"
	EventTerminals    = "terminal_count"
)

// Hub maintains convention_id -> set of terminal connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// conventionID -> map[clientID]*Client
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per convention
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishConventionEvent(conventionID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to convention channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeConvention(conventionID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Either Redis side may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a convention room. The first client of a room
// starts the Redis subscription for its convention.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	first := h.rooms[c.ConventionID] == nil
	if first {
		h.rooms[c.ConventionID] = make(map[string]*Client)
	}
	h.rooms[c.ConventionID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("terminal connected", zap.String("client_id", c.ID), zap.String("convention_id", c.ConventionID.String()))

	if first && h.redisSub != nil {
		h.subscribe(c.ConventionID)
	}
}

// subscribe runs without h.mu held; Redis may block, and incoming events take the lock.
func (h *Hub) subscribe(conventionID uuid.UUID) {
	cancel, err := h.redisSub.SubscribeConvention(conventionID, func(event string, payload []byte) {
		h.Broadcast(conventionID, event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("redis subscribe failed", zap.Error(err), zap.String("convention_id", conventionID.String()))
		return
	}
	h.mu.Lock()
	_, live := h.rooms[conventionID]
	_, taken := h.subs[conventionID]
	if live && !taken {
		h.subs[conventionID] = cancel
		cancel = nil
	}
	h.mu.Unlock()
	// The room emptied, or a newer subscription won, while this one was opening.
	if cancel != nil {
		cancel()
	}
}

// Unregister removes a client from its room. Cancels Redis subscription when last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.ConventionID]; ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.rooms, c.ConventionID)
			if cancel, ok := h.subs[c.ConventionID]; ok {
				cancel()
				delete(h.subs, c.ConventionID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("terminal disconnected", zap.String("client_id", c.ID), zap.String("convention_id", c.ConventionID.String()))
}

// Broadcast sends a message to all terminals of a convention (local only).
func (h *Hub) Broadcast(conventionID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[conventionID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish fans an event out to every instance. With Redis configured the subscriber
// callback does the local delivery, so local clients receive it once.
func (h *Hub) Publish(conventionID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal event", zap.String("event", event), zap.Error(err))
		return
	}
	if h.redis != nil {
		err := h.redis.PublishConventionEvent(conventionID, event, data)
		if err == nil {
			return
		}
		h.logger.Warn("redis publish failed, delivering locally", zap.Error(err))
	}
	h.Broadcast(conventionID, event, json.RawMessage(data))
}

// TerminalCount returns the number of connected terminals for a convention.
func (h *Hub) TerminalCount(conventionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conventionID])
}
