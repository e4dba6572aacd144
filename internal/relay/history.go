// ABOUTME: Per-user bounded message log for widget reconnect history
// ABOUTME: Keeps the most recent N messages, evicting oldest on overflow

package relay

import (
	"sync"
	"time"
)

// Direction marks which side of the bridge a message originated from.
type Direction int

const (
	// Outbound messages were typed by the internal user and relayed to Teams.
	Outbound Direction = iota
	// Inbound messages came from Teams and were delivered to the widget.
	Inbound
)

// Message is one entry in a user's history.
type Message struct {
	Direction Direction
	UserID    string
	Text      string
	Timestamp time.Time
}

// FromUser reports whether the message originated from the internal user.
// This is the boolean the widget protocol carries as "user".
func (m Message) FromUser() bool {
	return m.Direction == Outbound
}

// History stores the most recent messages per user. It is owned by the
// relay; readers get snapshot copies.
type History struct {
	mu    sync.RWMutex
	limit int
	logs  map[string][]Message
}

// NewHistory creates a history retaining at most limit messages per user.
// A limit of zero disables retention.
func NewHistory(limit int) *History {
	return &History{
		limit: limit,
		logs:  make(map[string][]Message),
	}
}

// Append records a message in the user's log, evicting the oldest entry
// when the log is at capacity.
func (h *History) Append(msg Message) {
	if h.limit == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	log := append(h.logs[msg.UserID], msg)
	if len(log) > h.limit {
		log = log[len(log)-h.limit:]
	}
	h.logs[msg.UserID] = log
}

// Recent returns a copy of the user's log, oldest first.
func (h *History) Recent(userID string) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	log := h.logs[userID]
	out := make([]Message, len(log))
	copy(out, log)
	return out
}
