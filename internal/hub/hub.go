// ABOUTME: Connection registry grouping websocket clients into per-user rooms
// ABOUTME: Delivers relay messages to every live connection of a user

package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/filoffee/teambridge/internal/directory"
	"github.com/filoffee/teambridge/internal/relay"
)

// AuthorizeFunc validates a join attempt. It receives the userId and the
// token from the join frame and returns an error to reject the join.
type AuthorizeFunc func(userID, token string) error

// SendFunc forwards a message typed over the socket to the relay.
type SendFunc func(userID, text string) error

// Hub tracks live websocket connections grouped by user. A user may hold
// several connections at once (multiple widget tabs); all of them receive
// every message addressed to that user.
type Hub struct {
	mu        sync.RWMutex
	rooms     map[string]map[*Client]bool
	registry  *directory.Registry
	authorize AuthorizeFunc
	send      SendFunc
	logger    *slog.Logger
}

// Options configures a Hub.
type Options struct {
	// Registry validates join userIds. Required.
	Registry *directory.Registry
	// Authorize is consulted on join when set. Nil allows every join
	// that names a known user.
	Authorize AuthorizeFunc
	// Send receives messages typed over the socket. Nil drops them.
	Send   SendFunc
	Logger *slog.Logger
}

// New creates a hub with no connections.
func New(opts Options) (*Hub, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("hub requires a user registry")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:     make(map[string]map[*Client]bool),
		registry:  opts.Registry,
		authorize: opts.Authorize,
		send:      opts.Send,
		logger:    logger.With("component", "hub"),
	}, nil
}

// join places a client in the room for userID, leaving any previous room
// first. Unknown users are rejected with directory.ErrUserNotFound.
func (h *Hub) join(c *Client, userID, token string) error {
	if _, err := h.registry.ByID(userID); err != nil {
		return err
	}
	if h.authorize != nil {
		if err := h.authorize(userID, token); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if c.userID != "" {
		h.removeLocked(c)
	}
	c.userID = userID

	room, ok := h.rooms[userID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[userID] = room
	}
	room[c] = true

	h.logger.Info("client joined room",
		"connection_id", c.id,
		"user_id", userID,
		"room_size", len(room),
	)
	return nil
}

// leave removes the client from its room. Calling it for a client that
// never joined is a no-op.
func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	room, ok := h.rooms[c.userID]
	if !ok {
		return
	}
	if _, member := room[c]; !member {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.userID)
	}
	h.logger.Debug("client left room", "connection_id", c.id, "user_id", c.userID)
}

// Members returns the number of live connections in the user's room.
func (h *Hub) Members(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// DeliverTo pushes msg to every connection in the user's room and returns
// how many received it. Zero means the user has no widget open right now;
// the caller decides whether that matters.
func (h *Hub) DeliverTo(userID string, msg relay.Message) int {
	frame, err := json.Marshal(chatFrame{
		Type: frameTypeChat,
		User: msg.FromUser(),
		Text: msg.Text,
	})
	if err != nil {
		h.logger.Error("marshaling chat frame", "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.rooms[userID] {
		if c.enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

// BroadcastAll pushes msg to every connection in every room and returns
// how many received it.
func (h *Hub) BroadcastAll(msg relay.Message) int {
	frame, err := json.Marshal(chatFrame{
		Type: frameTypeChat,
		User: msg.FromUser(),
		Text: msg.Text,
	})
	if err != nil {
		h.logger.Error("marshaling chat frame", "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, room := range h.rooms {
		for c := range room {
			if c.enqueue(frame) {
				delivered++
			}
		}
	}
	return delivered
}
