// ABOUTME: Conversation map correlating Teams conversation handles to user ids
// ABOUTME: Normalizes handles by stripping the per-message suffix Teams appends

package relay

import (
	"strings"
	"sync"
)

// handleSeparator splits the stable thread id from the per-message suffix.
// Teams hands back ids like "19:abc...;messageid=12345"; only the part
// before the first ';' identifies the conversation.
const handleSeparator = ";"

// NormalizeHandle reduces a platform conversation handle to its stable
// prefix. Returns "" for handles that are empty after trimming.
func NormalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	if i := strings.Index(handle, handleSeparator); i >= 0 {
		handle = handle[:i]
	}
	return handle
}

// ConvMap holds the conversation-handle to user-id mapping built on the
// outbound path and consulted on the inbound path. At most one user id is
// mapped per handle; recording an existing handle overwrites it.
type ConvMap struct {
	mu      sync.RWMutex
	byConv  map[string]string // normalized handle -> userID
	byUser  map[string]string // userID -> normalized handle
}

// NewConvMap creates an empty conversation map.
func NewConvMap() *ConvMap {
	return &ConvMap{
		byConv: make(map[string]string),
		byUser: make(map[string]string),
	}
}

// Record inserts or overwrites the mapping for a handle. The handle is
// normalized first; empty handles are ignored. Recording is last-write-wins:
// a handle previously mapped to another user now resolves to userID, and a
// user's previous handle is forgotten.
func (m *ConvMap) Record(handle, userID string) {
	handle = NormalizeHandle(handle)
	if handle == "" || userID == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Drop the user's previous handle so stale ids stop resolving.
	if prev, ok := m.byUser[userID]; ok && prev != handle {
		delete(m.byConv, prev)
	}
	// If the handle is being taken over from another user, clear that
	// user's reverse entry so it cannot evict this mapping later.
	if owner, ok := m.byConv[handle]; ok && owner != userID {
		delete(m.byUser, owner)
	}

	m.byConv[handle] = userID
	m.byUser[userID] = handle
}

// Resolve returns the user id mapped to the (normalized) handle.
func (m *ConvMap) Resolve(handle string) (string, bool) {
	handle = NormalizeHandle(handle)
	if handle == "" {
		return "", false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	userID, ok := m.byConv[handle]
	return userID, ok
}

// HandleFor returns the handle currently recorded for a user, if any.
func (m *ConvMap) HandleFor(userID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.byUser[userID]
	return h, ok
}

// Len returns the number of mapped conversations.
func (m *ConvMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byConv)
}
