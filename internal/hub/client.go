// ABOUTME: One websocket connection with buffered writes and ping keepalive
// ABOUTME: Read pump handles join and chat frames from the widget

package hub

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

const (
	frameTypeJoin  = "join"
	frameTypeChat  = "chat message"
	frameTypeError = "error"
)

// chatFrame is the widget wire format in both directions. User is true
// when the internal user authored the text, false when Teams did.
type chatFrame struct {
	Type string `json:"type"`
	User bool   `json:"user"`
	Text string `json:"text"`
}

// inboundFrame is the envelope the read pump decodes before dispatching
// on the type field. A join carries userId and token; a chat message
// carries text.
type inboundFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Token  string `json:"token"`
	Text   string `json:"text"`
}

// errorFrame tells the widget why a frame was rejected.
type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Client is one websocket connection. Writes go through the send channel
// so only the write pump touches the connection; slow consumers get
// disconnected rather than blocking delivery to their roommates.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	logger *slog.Logger
}

// NewClient wraps an upgraded connection and starts its pumps. The client
// removes itself from the hub when the connection drops.
func NewClient(h *Hub, conn *websocket.Conn) *Client {
	id := uuid.NewString()
	c := &Client{
		id:     id,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		logger: h.logger.With("connection_id", id),
	}

	go c.writePump()
	go c.readPump()
	return c
}

// enqueue queues frame for the write pump without blocking. A full send
// buffer means the client stopped draining; it reports false and the
// write pump will notice the closed connection shortly.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn("dropping frame for slow client")
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket closed unexpectedly", "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendError("malformed frame")
			continue
		}

		switch frame.Type {
		case frameTypeJoin:
			if err := c.hub.join(c, frame.UserID, frame.Token); err != nil {
				c.sendError(err.Error())
			}
		case frameTypeChat:
			c.handleChat(frame.Text)
		default:
			c.sendError("unknown frame type")
		}
	}
}

func (c *Client) handleChat(text string) {
	if c.userID == "" {
		c.sendError("join a room before sending messages")
		return
	}
	if c.hub.send == nil {
		return
	}
	if err := c.hub.send(c.userID, text); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) sendError(msg string) {
	frame, err := json.Marshal(errorFrame{Type: frameTypeError, Error: msg})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
