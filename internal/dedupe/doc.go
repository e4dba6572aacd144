// ABOUTME: Redelivery suppression for inbound webhook posts
// ABOUTME: TTL plus size-bounded key cache

// Package dedupe suppresses duplicate webhook deliveries. Teams retries
// an outgoing webhook post when it does not get a timely 2xx, so the
// bridge remembers recent delivery keys and drops repeats.
package dedupe
