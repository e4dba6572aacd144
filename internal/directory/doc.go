// Package directory holds the fixed catalog of internal users.
//
// The bridge serves a small, known set of users. The catalog is loaded once
// at startup, either from a TOML file:
//
//	[[users]]
//	id = "user1"
//	name = "Titan"
//	email = "Titan@example.com"
//
// or from the built-in demo catalog when no file is configured. The registry
// is read-only after construction and safe for concurrent use.
//
// Display-name lookup (ByName) is case-insensitive because the relay's
// mention fallback matches "@Name:" prefixes typed by operators in Teams.
package directory
