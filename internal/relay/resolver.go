// ABOUTME: Ordered correlation strategies resolving inbound payloads to users
// ABOUTME: Map lookup first, then mention parsing, then static per-user handles

package relay

import (
	"strings"

	"github.com/filoffee/teambridge/internal/directory"
)

// Resolution is a successful correlation of an inbound message to a user.
type Resolution struct {
	UserID string
	// Text is the message text after the strategy's rewriting, if any.
	// The mention strategy strips the matched "@Name:" prefix.
	Text string
}

// Strategy correlates an inbound (handle, text) pair to an internal user.
// Strategies are tried in order; the first match wins.
type Strategy interface {
	Name() string
	Resolve(handle, text string) (Resolution, bool)
}

// StaticHandle returns the deterministic caller-assigned conversation handle
// for a user, used when the platform never echoes one of its own.
func StaticHandle(userID string) string {
	return "user-" + userID
}

// mapStrategy resolves through the conversation map built on the outbound path.
type mapStrategy struct {
	convs *ConvMap
}

func (s *mapStrategy) Name() string { return "conversation-map" }

func (s *mapStrategy) Resolve(handle, text string) (Resolution, bool) {
	userID, ok := s.convs.Resolve(handle)
	if !ok {
		return Resolution{}, false
	}
	return Resolution{UserID: userID, Text: text}, true
}

// mentionStrategy matches a leading "@Name:" or "@Name" mention against the
// registry's display names. On a match it strips the mention from the text
// and records the handle so later messages resolve through the map.
type mentionStrategy struct {
	registry *directory.Registry
	convs    *ConvMap
}

func (s *mentionStrategy) Name() string { return "mention" }

func (s *mentionStrategy) Resolve(handle, text string) (Resolution, bool) {
	name, rest, ok := splitMention(text)
	if !ok {
		return Resolution{}, false
	}

	user, err := s.registry.ByName(name)
	if err != nil {
		return Resolution{}, false
	}

	// Remember the handle for this user so the map takes over next time.
	s.convs.Record(handle, user.ID)

	return Resolution{UserID: user.ID, Text: rest}, true
}

// splitMention extracts a leading @-mention from text. Accepted forms are
// "@Name: rest", "@Name rest", and a bare "@Name". Returns the mentioned
// name and the remaining text.
func splitMention(text string) (name, rest string, ok bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "@") {
		return "", "", false
	}
	trimmed = trimmed[1:]
	if trimmed == "" {
		return "", "", false
	}

	if i := strings.Index(trimmed, ":"); i >= 0 {
		return strings.TrimSpace(trimmed[:i]), strings.TrimSpace(trimmed[i+1:]), true
	}
	if i := strings.IndexAny(trimmed, " \t"); i >= 0 {
		return trimmed[:i], strings.TrimSpace(trimmed[i:]), true
	}
	return trimmed, "", true
}

// staticStrategy matches handles of the deterministic per-user form that the
// outbound path synthesizes when Teams does not echo a conversation id.
type staticStrategy struct {
	registry *directory.Registry
}

func (s *staticStrategy) Name() string { return "static-handle" }

func (s *staticStrategy) Resolve(handle, text string) (Resolution, bool) {
	normalized := NormalizeHandle(handle)
	if !strings.HasPrefix(normalized, "user-") {
		return Resolution{}, false
	}

	userID := strings.TrimPrefix(normalized, "user-")
	if _, err := s.registry.ByID(userID); err != nil {
		return Resolution{}, false
	}
	return Resolution{UserID: userID, Text: text}, true
}

// newStrategies returns the correlation chain in its fixed order.
func newStrategies(convs *ConvMap, registry *directory.Registry) []Strategy {
	return []Strategy{
		&mapStrategy{convs: convs},
		&mentionStrategy{registry: registry, convs: convs},
		&staticStrategy{registry: registry},
	}
}
