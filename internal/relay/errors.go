// ABOUTME: Error taxonomy for the relay engine
// ABOUTME: Callers discriminate with errors.Is to pick response codes

package relay

import "errors"

// Relay errors
var (
	// ErrInvalidRequest means caller input was missing or empty after trimming.
	ErrInvalidRequest = errors.New("message and user id are required")

	// ErrUnknownUser means the user id is not in the directory.
	ErrUnknownUser = errors.New("unknown user")

	// ErrRelayFailure means the call to Teams failed; the caller may retry.
	ErrRelayFailure = errors.New("failed to relay message to teams")

	// ErrUnresolvedConversation means no correlation strategy matched the
	// inbound payload; the message is dropped, not queued.
	ErrUnresolvedConversation = errors.New("unable to map conversation to a user")

	// ErrMalformedPayload means the inbound payload is missing required fields.
	ErrMalformedPayload = errors.New("malformed platform payload")

	// ErrDuplicateDelivery means the platform redelivered a message that was
	// already processed. Acknowledged, never reprocessed.
	ErrDuplicateDelivery = errors.New("duplicate delivery")
)
