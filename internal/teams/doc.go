// ABOUTME: Teams webhook integration for the bridge
// ABOUTME: Outbound posting client and inbound payload parsing

// Package teams talks to Microsoft Teams webhooks. Client posts
// formatted messages to an incoming webhook; InboundPayload maps the
// body an outgoing webhook delivers and recovers the plain text from
// its HTML rendering.
package teams
