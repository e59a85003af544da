package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	activityChannelPrefix = "activity:"
	writeWait             = 10 * time.Second
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string    `json:"type"`
	Timestamp int64     `json:"timestamp,omitempty"`
	Message   string    `json:"message,omitempty"`
	Activity  *Activity `json:"activity,omitempty"`
}

// WSConn is a registered WebSocket connection. Writes are serialized.
type WSConn struct {
	userID string
	conn   *websocket.Conn
	mu     sync.Mutex
}

func (c *WSConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections. With redis configured, activity is
// published on activity:{userID} and every instance delivers to its own
// connections.
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]map[*WSConn]struct{}
	redis       *redis.Client
}

// NewWSHub creates a new WebSocket hub. redisClient may be nil.
func NewWSHub(redisClient *redis.Client) *WSHub {
	return &WSHub{
		connections: make(map[string]map[*WSConn]struct{}),
		redis:       redisClient,
	}
}

// Register registers a new WebSocket connection for a user
func (h *WSHub) Register(userID string, conn *websocket.Conn) *WSConn {
	c := &WSConn{userID: userID, conn: conn}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connections[userID] == nil {
		h.connections[userID] = make(map[*WSConn]struct{})
	}
	h.connections[userID][c] = struct{}{}

	log.Info().Str("user_id", userID).Int("connections", len(h.connections[userID])).Msg("WebSocket connection registered")
	return c
}

// Unregister removes and closes a connection
func (h *WSHub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.connections[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.connections, c.userID)
	}
	c.conn.Close()
	log.Info().Str("user_id", c.userID).Msg("WebSocket connection unregistered")
}

// IsOnline checks if a user has at least one open connection on this instance
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID]) > 0
}

// Send writes a message to a single connection
func (h *WSHub) Send(c *WSConn, message WSMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := c.write(data); err != nil {
		h.Unregister(c)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Publish implements ActivityPublisher
func (h *WSHub) Publish(ctx context.Context, userID string, activity Activity) error {
	data, err := json.Marshal(WSMessage{Type: "activity", Timestamp: activity.Timestamp, Activity: &activity})
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	if h.redis == nil {
		h.deliver(userID, data)
		return nil
	}
	if err := h.redis.Publish(ctx, activityChannelPrefix+userID, data).Err(); err != nil {
		return fmt.Errorf("failed to publish activity: %w", err)
	}
	return nil
}

// Subscribe starts delivering activity published by any instance. It returns
// once the subscription is confirmed; delivery stops when ctx is done.
func (h *WSHub) Subscribe(ctx context.Context) error {
	if h.redis == nil {
		return nil
	}

	pubsub := h.redis.PSubscribe(ctx, activityChannelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to activity: %w", err)
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				h.deliver(strings.TrimPrefix(msg.Channel, activityChannelPrefix), []byte(msg.Payload))
			}
		}
	}()
	return nil
}

// deliver writes a payload to every local connection of a user
func (h *WSHub) deliver(userID string, data []byte) {
	h.mu.RLock()
	conns := make([]*WSConn, 0, len(h.connections[userID]))
	for c := range h.connections[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to deliver activity")
			h.Unregister(c)
		}
	}
}
