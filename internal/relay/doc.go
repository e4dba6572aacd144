// Package relay implements the conversation-routing engine at the heart of
// teambridge.
//
// # Overview
//
// The relay sits between two asynchronous, otherwise-stateless flows:
//
//   - Outbound: a widget user sends a message, the relay forwards it to the
//     Teams incoming webhook and records which Teams conversation handle
//     belongs to that user.
//   - Inbound: Teams posts a webhook payload, the relay works out which user
//     the conversation belongs to and pushes the message to that user's live
//     connections.
//
// The correlation state lives in the ConvMap. Teams does not guarantee a
// stable conversation id before the first outbound message, so the map is
// populated lazily on the outbound path and refreshed on every send.
//
// # Correlation strategies
//
// Inbound resolution is a fixed, ordered chain:
//
//  1. conversation-map: normalized handle lookup in ConvMap
//  2. mention: a leading "@Name:" in the text matched against display names;
//     the handle is learned into the map on a hit
//  3. static-handle: the deterministic "user-<id>" handles the outbound path
//     synthesizes when Teams echoes no conversation id
//
// If every strategy misses the message is dropped with
// ErrUnresolvedConversation; the relay never guesses.
//
// # Handle normalization
//
// Teams appends a per-message suffix to conversation ids
// ("19:abc;messageid=5"). Only the prefix before the first ';' is stable, so
// all map operations normalize first:
//
//	relay.NormalizeHandle("19:abc;messageid=5") == "19:abc"
//
// # Concurrency
//
// ConvMap and History are mutex-guarded and shared by the outbound HTTP
// handler, the inbound webhook handler, and connection lifecycle events.
// Delivery to connections is fire-and-forget per connection; a slow client
// never blocks the webhook response.
package relay
