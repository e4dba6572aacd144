// ABOUTME: Top-level server assembly for teambridge
// ABOUTME: HTTP API, webhook endpoint, websocket upgrade, lifecycle

// Package bridge assembles the teambridge server. It wires the user
// registry, relay engine, websocket hub, and Teams client together and
// serves the HTTP surface: the widget REST API, the outgoing-webhook
// endpoint Teams posts to, and the websocket upgrade path.
package bridge
