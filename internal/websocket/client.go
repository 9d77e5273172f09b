package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// WebRTC offers carry full SDP blobs, so the limit is generous.
	maxMessageSize = 16 * 1024

	sendBufferSize = 256
)

// FrameHandler receives the inbound frames of one connection. Frames
// are dispatched sequentially from the connection's read loop, so a
// handler never re-enters for the same connection. HandleDisconnect
// runs exactly once, after the last frame.
type FrameHandler interface {
	HandleFrame(ctx context.Context, client *Client, frame []byte)
	HandleDisconnect(client *Client)
}

// Client is a middleman between one websocket connection and the hub.
// It carries the authenticated identity and the set of joined topics;
// it lives exactly as long as the transport connection.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn

	UserID   uuid.UUID
	Username string

	// Buffered channel of outbound messages.
	Send chan []byte

	// topics is guarded by Hub.mu.
	topics map[string]bool

	// sendMu guards closed and serializes enqueues with closeSend, so
	// a broadcast racing a disconnect never sends on a closed channel.
	sendMu sync.Mutex
	closed bool

	handler        FrameHandler
	disconnectOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, username string, handler FrameHandler) *Client {
	return &Client{
		Hub:      hub,
		Conn:     conn,
		UserID:   userID,
		Username: username,
		Send:     make(chan []byte, sendBufferSize),
		topics:   make(map[string]bool),
		handler:  handler,
	}
}

// SendJSON queues an outbound frame for this connection only.
// Best-effort: a full buffer drops the frame rather than blocking.
func (c *Client) SendJSON(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.trySend(data)
}

// trySend enqueues data for the write pump. Returns false when the
// buffer is full; a closed client swallows the frame and reports true.
func (c *Client) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound channel exactly once.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Serve runs the connection until it drops. The write pump gets its
// own goroutine; the read pump runs on the caller (the fiber websocket
// handler goroutine) so returning tears the connection down.
func (c *Client) Serve(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

// readPump consumes inbound frames one at a time and hands them to the
// FrameHandler. Cleanup always runs exactly once, even when frame
// handling panicked or the peer vanished mid-write.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		// A panicking frame handler must not skip cleanup.
		recover()
		c.finishDisconnect()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
		if c.handler != nil {
			c.handler.HandleFrame(ctx, c, frame)
		}
	}
}

func (c *Client) finishDisconnect() {
	c.disconnectOnce.Do(func() {
		if c.handler != nil {
			c.handler.HandleDisconnect(c)
		}
		c.Hub.Unregister(c)
	})
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Drain whatever queued up behind this frame.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					return
				}
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
