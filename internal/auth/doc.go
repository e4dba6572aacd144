// ABOUTME: Optional JWT authentication for widget requests
// ABOUTME: Disabled entirely when no secret is configured

// Package auth authenticates widget sessions with HS256 JWTs. The
// bridge wires it in only when a secret is configured; without one the
// API trusts the userId each request names, which matches how the
// widget is deployed on a private network.
package auth
