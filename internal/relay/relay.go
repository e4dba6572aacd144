// ABOUTME: Bidirectional relay engine between the chat widget and Teams
// ABOUTME: Owns the conversation map, message history, and correlation chain

package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/filoffee/teambridge/internal/directory"
)

// PlatformResult is what the platform reports after accepting a message.
type PlatformResult struct {
	// ConversationID is the handle the platform assigned to the thread.
	// Empty when the platform does not echo one.
	ConversationID string
}

// PlatformSender posts formatted text to the external platform.
// Implemented by teams.Client.
type PlatformSender interface {
	Post(ctx context.Context, text string) (PlatformResult, error)
}

// Deliverer pushes an inbound message to a user's live connections.
// Implemented by hub.Hub. Returns the number of connections reached;
// zero is not an error, the message stays in history for reconnect.
type Deliverer interface {
	DeliverTo(userID string, msg Message) int
}

// DedupeCache suppresses platform redeliveries of the same message.
// Implemented by dedupe.Cache.
type DedupeCache interface {
	CheckAndMark(key string) bool
}

// Options configures a Relay.
type Options struct {
	Registry *directory.Registry
	Sender   PlatformSender
	Hub      Deliverer
	Dedupe   DedupeCache
	Logger   *slog.Logger

	// Timeout bounds the outbound platform call. Zero means no extra bound
	// beyond the caller's context.
	Timeout time.Duration

	// HistoryLimit is the per-user message retention count.
	HistoryLimit int
}

// Relay is the conversation-routing engine. It accepts outbound messages
// from widget users, forwards them to Teams, accepts inbound webhook
// messages from Teams, and keeps the handle-to-user correlation state
// consistent across both flows.
type Relay struct {
	registry   *directory.Registry
	convs      *ConvMap
	history    *History
	sender     PlatformSender
	hub        Deliverer
	dedupe     DedupeCache
	strategies []Strategy
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates a relay from options. Registry, Sender, and Hub are required.
func New(opts Options) (*Relay, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("relay: registry is required")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("relay: platform sender is required")
	}
	if opts.Hub == nil {
		return nil, fmt.Errorf("relay: deliverer is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	convs := NewConvMap()
	return &Relay{
		registry:   opts.Registry,
		convs:      convs,
		history:    NewHistory(opts.HistoryLimit),
		sender:     opts.Sender,
		hub:        opts.Hub,
		dedupe:     opts.Dedupe,
		strategies: newStrategies(convs, opts.Registry),
		timeout:    opts.Timeout,
		logger:     logger.With("component", "relay"),
	}, nil
}

// ConvMap exposes the conversation map for readiness reporting and tests.
func (r *Relay) ConvMap() *ConvMap {
	return r.convs
}

// Recent returns the user's retained history, oldest first.
// Unknown users get ErrUnknownUser.
func (r *Relay) Recent(userID string) ([]Message, error) {
	if _, err := r.registry.ByID(userID); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUser, userID)
	}
	return r.history.Recent(userID), nil
}

// Send relays an outbound message from a widget user to Teams.
//
// The message is recorded in history before the platform call; a platform
// failure leaves it recorded (the widget already rendered it as sent) but
// never touches the conversation map. On success the map is refreshed with
// the handle Teams echoed, or with the user's static handle when Teams
// echoed none.
func (r *Relay) Send(ctx context.Context, userID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" || userID == "" {
		return ErrInvalidRequest
	}

	user, err := r.registry.ByID(userID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownUser, userID)
	}

	r.history.Append(Message{
		Direction: Outbound,
		UserID:    user.ID,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	formatted := fmt.Sprintf("Message from %s (%s): %s", user.Name, user.Email, text)
	result, err := r.sender.Post(ctx, formatted)
	if err != nil {
		r.logger.Error("teams webhook call failed",
			"user_id", user.ID,
			"error", err,
		)
		return fmt.Errorf("%w: %v", ErrRelayFailure, err)
	}

	handle := result.ConversationID
	if handle == "" {
		handle = StaticHandle(user.ID)
	}
	r.convs.Record(handle, user.ID)

	r.logger.Info("message relayed to teams",
		"user_id", user.ID,
		"conversation", NormalizeHandle(handle),
	)
	return nil
}

// InboundMessage is a platform webhook payload reduced to the fields the
// relay correlates on. Text must already be plain (markup stripped).
type InboundMessage struct {
	// ConversationID is the raw handle from the payload, suffix included.
	ConversationID string
	// Text is the plain message content.
	Text string
}

// HandleInbound correlates an inbound Teams message to a user, records it,
// and delivers it to the user's live connections. Returns the resolved
// user id.
//
// Either every live connection for the resolved user receives the message
// or, when no strategy matches, none does and ErrUnresolvedConversation is
// returned. Redeliveries of an already-processed message return
// ErrDuplicateDelivery without re-recording or re-delivering.
func (r *Relay) HandleInbound(ctx context.Context, msg InboundMessage) (string, error) {
	if msg.Text == "" {
		return "", fmt.Errorf("%w: no message content", ErrMalformedPayload)
	}
	if msg.ConversationID == "" && !strings.HasPrefix(strings.TrimSpace(msg.Text), "@") {
		return "", fmt.Errorf("%w: no conversation id", ErrMalformedPayload)
	}

	handle := msg.ConversationID
	for _, s := range r.strategies {
		res, ok := s.Resolve(handle, msg.Text)
		if !ok {
			continue
		}

		// Mark only resolvable messages: a retry of one that failed with
		// ErrUnresolvedConversation should fail the same way, not get
		// silently swallowed as a duplicate.
		if r.dedupe != nil && r.dedupe.CheckAndMark(dedupeKey(msg)) {
			r.logger.Debug("duplicate teams delivery ignored",
				"conversation", NormalizeHandle(msg.ConversationID),
			)
			return "", ErrDuplicateDelivery
		}

		delivered := r.recordAndDeliver(res)
		r.logger.Info("teams message delivered",
			"user_id", res.UserID,
			"strategy", s.Name(),
			"connections", delivered,
		)
		return res.UserID, nil
	}

	r.logger.Warn("inbound message could not be correlated",
		"conversation", NormalizeHandle(handle),
	)
	return "", fmt.Errorf("%w: conversation %q", ErrUnresolvedConversation, NormalizeHandle(handle))
}

// recordAndDeliver appends the inbound message to history and fans it out
// to the user's connections.
func (r *Relay) recordAndDeliver(res Resolution) int {
	m := Message{
		Direction: Inbound,
		UserID:    res.UserID,
		Text:      res.Text,
		Timestamp: time.Now().UTC(),
	}
	r.history.Append(m)
	return r.hub.DeliverTo(res.UserID, m)
}

// dedupeKey builds the redelivery-suppression key for an inbound message.
// When the raw handle carries a per-message suffix it uniquely identifies
// the delivery. A bare handle does not, so the text is folded in to avoid
// swallowing distinct messages on the same thread.
func dedupeKey(msg InboundMessage) string {
	raw := strings.TrimSpace(msg.ConversationID)
	if raw != NormalizeHandle(raw) {
		return raw
	}
	return raw + "|" + msg.Text
}
