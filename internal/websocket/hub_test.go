package websocket

import (
	"encoding/json"
	"sync"
	"testing"

	"calmconnect-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub) *Client {
	return NewClient(hub, nil, uuid.New(), "tester", nil)
}

func TestTopicNames(t *testing.T) {
	id := uuid.MustParse("a2b94f4c-b674-433b-90be-65a91a37e7a3")
	assert.Equal(t, "live_session_session_abc123def456", RoomTopic("session_abc123def456"))
	assert.Equal(t, "chat_session_abc123def456", ChatTopic("session_abc123def456"))
	assert.Equal(t, "notifications_a2b94f4c-b674-433b-90be-65a91a37e7a3", NotificationTopic(id))
}

func TestJoinLeave(t *testing.T) {
	hub := NewHub(nil, logger.NewNopLogger())
	client := newTestClient(hub)

	hub.Join("room1", client)
	hub.Join("room1", client)
	assert.Equal(t, 1, hub.TopicSize("room1"))

	hub.Leave("room1", client)
	assert.Equal(t, 0, hub.TopicSize("room1"))

	// Leaving again is harmless.
	hub.Leave("room1", client)
	assert.Equal(t, 0, hub.TopicSize("room1"))
}

func TestBroadcastReachesMembersOnly(t *testing.T) {
	hub := NewHub(nil, logger.NewNopLogger())

	member1 := newTestClient(hub)
	member2 := newTestClient(hub)
	outsider := newTestClient(hub)

	hub.Join("room1", member1)
	hub.Join("room1", member2)
	hub.Join("room2", outsider)

	hub.Broadcast("room1", map[string]string{"type": "chat_message", "message": "hi"})

	for _, c := range []*Client{member1, member2} {
		select {
		case raw := <-c.Send:
			var frame map[string]string
			require.NoError(t, json.Unmarshal(raw, &frame))
			assert.Equal(t, "hi", frame["message"])
		default:
			t.Fatal("member did not receive the broadcast")
		}
	}

	select {
	case <-outsider.Send:
		t.Fatal("outsider received a frame for another topic")
	default:
	}
}

func TestBroadcastDropsSlowClients(t *testing.T) {
	hub := NewHub(nil, logger.NewNopLogger())

	slow := newTestClient(hub)
	healthy := newTestClient(hub)
	hub.Join("room1", slow)
	hub.Join("room1", healthy)

	// Fill the slow client's buffer to capacity.
	for i := 0; i < cap(slow.Send); i++ {
		slow.Send <- []byte("{}")
	}

	hub.Broadcast("room1", map[string]string{"type": "chat_message", "message": "x"})

	// The slow client was unregistered; the healthy one still got the
	// frame.
	assert.Equal(t, 1, hub.TopicSize("room1"))
	select {
	case <-healthy.Send:
	default:
		t.Fatal("healthy member lost the broadcast")
	}

	// Its send channel is closed after draining the backlog.
	drained := 0
	for range slow.Send {
		drained++
	}
	assert.Equal(t, cap(slow.Send), drained)
}

func TestBroadcastDuringDisconnect(t *testing.T) {
	hub := NewHub(nil, logger.NewNopLogger())

	clients := make([]*Client, 0, 300)
	for i := 0; i < 300; i++ {
		c := newTestClient(hub)
		hub.Join("room1", c)
		clients = append(clients, c)
	}

	// Broadcasts racing disconnects must never send on a closed
	// channel; a panic here crashes the broadcasting goroutine.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			hub.Broadcast("room1", map[string]string{"type": "chat_message", "message": "x"})
		}
	}()
	go func() {
		defer wg.Done()
		for _, c := range clients {
			hub.Unregister(c)
		}
	}()
	wg.Wait()

	assert.Equal(t, 0, hub.TopicSize("room1"))
}

func TestSendJSONAfterUnregisterIsNoop(t *testing.T) {
	hub := NewHub(nil, logger.NewNopLogger())
	client := newTestClient(hub)
	hub.Join("room1", client)

	hub.Unregister(client)
	client.SendJSON(map[string]string{"type": "chat_message"})

	_, open := <-client.Send
	assert.False(t, open)
}

func TestUnregisterDetachesAllTopics(t *testing.T) {
	hub := NewHub(nil, logger.NewNopLogger())
	client := newTestClient(hub)

	hub.Join("room1", client)
	hub.Join("room2", client)

	hub.Unregister(client)
	assert.Equal(t, 0, hub.TopicSize("room1"))
	assert.Equal(t, 0, hub.TopicSize("room2"))

	// Safe to call twice.
	hub.Unregister(client)
}

func TestSendJSONDropsWhenFull(t *testing.T) {
	hub := NewHub(nil, logger.NewNopLogger())
	client := newTestClient(hub)

	for i := 0; i < cap(client.Send); i++ {
		client.Send <- []byte("{}")
	}

	// Must not block.
	client.SendJSON(map[string]string{"type": "error"})
	assert.Equal(t, cap(client.Send), len(client.Send))
}
