// Package config handles configuration loading for teambridge.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	teams:
//	  webhook_url: "${TEAMS_WEBHOOK_URL}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	relay:
//	  timeout: "10s"
//	  dedupe_ttl: "5m"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: ":5002"
//	  allowed_origins:
//	    - "http://localhost:3000"
//
// Teams webhook:
//
//	teams:
//	  webhook_url: "${TEAMS_WEBHOOK_URL}"
//
// Relay behavior:
//
//	relay:
//	  timeout: "10s"        # Teams webhook call deadline
//	  history_limit: 50     # messages retained per user
//	  dedupe_ttl: "5m"      # webhook redelivery suppression window
//
// Authentication (optional, open access when unset):
//
//	auth:
//	  jwt_secret: "${TEAMBRIDGE_JWT_SECRET}"
//
// User catalog (optional, built-in catalog when unset):
//
//	directory:
//	  catalog: "/etc/teambridge/users.toml"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
