package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"calmconnect-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Topic names. A topic is a named broadcast group: the room of one
// live session, the room of one text chat, or a user's private
// notification stream.
func RoomTopic(roomID string) string        { return "live_session_" + roomID }
func ChatTopic(roomID string) string        { return "chat_" + roomID }
func NotificationTopic(id uuid.UUID) string { return "notifications_" + id.String() }

const clusterChannel = "rt_events"

// Hub fans messages out to every connection joined to a topic.
// Delivery is at-most-once and best-effort: a client whose send buffer
// is full is dropped, and the remaining members still receive the
// message. Within one connection, messages arrive in broadcast order.
type Hub struct {
	// topic -> set of member connections
	topics map[string]map[*Client]bool

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance fanout. Nil means purely
	// local delivery.
	rdb *redis.Client

	// instanceID filters out our own cluster echoes.
	instanceID string

	logger logger.ILogger
}

type clusterFrame struct {
	Origin  string          `json:"origin"`
	Topic   string          `json:"topic"`
	Message json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		topics:     make(map[string]map[*Client]bool),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

// Run starts the cluster subscriber when Redis is configured. Local
// join/leave/broadcast work without it.
func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToCluster()
	}
}

// Join adds the connection to a topic. Idempotent.
func (h *Hub) Join(topic string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.topics[topic]
	if !ok {
		members = make(map[*Client]bool)
		h.topics[topic] = members
	}
	members[client] = true
	client.topics[topic] = true
}

// Leave removes the connection from a topic. Unknown pairs are a no-op.
func (h *Hub) Leave(topic string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromTopic(topic, client)
	delete(client.topics, topic)
}

// removeFromTopic requires h.mu held.
func (h *Hub) removeFromTopic(topic string, client *Client) {
	if members, ok := h.topics[topic]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Broadcast delivers payload to every current member of the topic and
// mirrors it to sibling instances over Redis.
func (h *Hub) Broadcast(topic string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal broadcast payload", map[string]interface{}{"topic": topic, "error": err.Error()})
		return
	}

	h.deliverLocal(topic, data)

	if h.rdb != nil {
		frame, _ := json.Marshal(clusterFrame{
			Origin:  h.instanceID,
			Topic:   topic,
			Message: data,
		})
		if err := h.rdb.Publish(context.Background(), clusterChannel, frame).Err(); err != nil {
			h.logger.Warn("Hub", "Cluster publish failed", map[string]interface{}{"topic": topic, "error": err.Error()})
		}
	}
}

func (h *Hub) deliverLocal(topic string, data []byte) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.topics[topic]))
	for client := range h.topics[topic] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	for _, client := range members {
		if !client.trySend(data) {
			// Slow consumer. Drop the connection rather than block
			// delivery to the rest of the topic.
			h.logger.Warn("Hub", "Send buffer full, dropping client", map[string]interface{}{"user_id": client.UserID, "topic": topic})
			h.Unregister(client)
		}
	}
}

// Unregister detaches the connection from every topic and closes its
// send channel. Safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic := range client.topics {
		h.removeFromTopic(topic, client)
	}
	client.topics = make(map[string]bool)
	client.closeSend()
	h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"user_id": client.UserID})
}

// TopicSize reports the current number of members, mainly for tests
// and health reporting.
func (h *Hub) TopicSize(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) subscribeToCluster() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var frame clusterFrame
		if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			h.logger.Warn("Hub", "Bad cluster frame", map[string]interface{}{"error": err.Error()})
			continue
		}
		if frame.Origin == h.instanceID {
			continue
		}
		h.deliverLocal(frame.Topic, frame.Message)
	}
}
