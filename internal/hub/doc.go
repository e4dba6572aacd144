// ABOUTME: Websocket fan-out for the chat widget
// ABOUTME: Rooms keyed by userId, many connections per user

// Package hub manages the widget side of the bridge. Each websocket
// connection joins the room for its userId; messages addressed to a
// user fan out to every connection in that room.
package hub
