package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-facesense/pkg/debug"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Status subscribers only send control frames.
	maxMessageSize = 4 * 1024

	sendBuffer = 64
)

// Client is one subscriber connection.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient registers a subscriber with the hub. It returns nil if the
// hub has already stopped.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		ID:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	select {
	case hub.register <- client:
		debug.Log("subscriber joined", "hub", hub.name, "client", client.ID)
		return client
	case <-hub.done:
		return nil
	}
}

// Run pumps messages to the connection until it closes.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
	debug.Log("subscriber left", "hub", c.hub.name, "client", c.ID)
}

// readPump only processes pongs and the close frame.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump owns all writes. A subscriber that falls behind skips to the
// newest queued message; older states are stale once a newer one exists.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			msg, ok = latest(c.send, msg, ok)
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.Data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// latest drains ch without blocking and returns the last message seen.
// ok is false once ch is closed.
func latest(ch <-chan Message, msg Message, ok bool) (Message, bool) {
	for ok {
		select {
		case next, open := <-ch:
			if !open {
				return msg, false
			}
			msg = next
		default:
			return msg, true
		}
	}
	return msg, false
}
