package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialHub starts a server that registers every connection as userID and
// returns a client connection once the hub has registered it
func dialHub(t *testing.T, hub *WSHub, userID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := hub.Register(userID, conn)
		defer hub.Unregister(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.IsOnline(userID) }, time.Second, 5*time.Millisecond)
	return conn
}

func readActivity(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubPublishLocal(t *testing.T) {
	hub := NewWSHub(nil)
	conn := dialHub(t, hub, "alice")

	err := hub.Publish(context.Background(), "alice", Activity{Type: ActivityLike, ActorID: "bob", PostID: "p1", Timestamp: 42})
	require.NoError(t, err)

	msg := readActivity(t, conn)
	assert.Equal(t, "activity", msg.Type)
	require.NotNil(t, msg.Activity)
	assert.Equal(t, "bob", msg.Activity.ActorID)
	assert.Equal(t, "p1", msg.Activity.PostID)

	require.NoError(t, hub.Publish(context.Background(), "nobody", Activity{Type: ActivityLike}))
}

func TestHubPublishThroughRedis(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	receiving := NewWSHub(client)
	require.NoError(t, receiving.Subscribe(ctx))
	conn := dialHub(t, receiving, "alice")

	// a second instance without local connections publishes
	sending := NewWSHub(client)
	require.NoError(t, sending.Publish(ctx, "alice", Activity{Type: ActivityFollow, ActorID: "bob"}))

	msg := readActivity(t, conn)
	require.NotNil(t, msg.Activity)
	assert.Equal(t, ActivityFollow, msg.Activity.Type)
}

func TestHubUnregister(t *testing.T) {
	hub := NewWSHub(nil)
	conn := dialHub(t, hub, "alice")
	conn.Close()

	require.Eventually(t, func() bool { return !hub.IsOnline("alice") }, time.Second, 5*time.Millisecond)
}
