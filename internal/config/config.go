// ABOUTME: Configuration loading and parsing for teambridge
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete teambridge configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Teams     TeamsConfig     `yaml:"teams"`
	Relay     RelayConfig     `yaml:"relay"`
	Auth      AuthConfig      `yaml:"auth"`
	Directory DirectoryConfig `yaml:"directory"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server address and CORS configuration
type ServerConfig struct {
	HTTPAddr       string   `yaml:"http_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TeamsConfig holds the Microsoft Teams incoming-webhook configuration
type TeamsConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// RelayConfig holds relay timing and retention configuration
type RelayConfig struct {
	Timeout      time.Duration `yaml:"-"`
	DedupeTTL    time.Duration `yaml:"-"`
	HistoryLimit int           `yaml:"history_limit"`

	// Raw string values for YAML unmarshaling
	TimeoutRaw   string `yaml:"timeout"`
	DedupeTTLRaw string `yaml:"dedupe_ttl"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// DirectoryConfig holds the user catalog location
type DirectoryConfig struct {
	// Catalog is a path to a TOML user catalog. Empty means the
	// built-in catalog is used.
	Catalog string `yaml:"catalog"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when fields are left unset.
const (
	DefaultHTTPAddr     = ":5002"
	DefaultRelayTimeout = 10 * time.Second
	DefaultDedupeTTL    = 5 * time.Minute
	DefaultHistoryLimit = 50
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in unset fields with their default values.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Relay.Timeout == 0 {
		c.Relay.Timeout = DefaultRelayTimeout
	}
	if c.Relay.DedupeTTL == 0 {
		c.Relay.DedupeTTL = DefaultDedupeTTL
	}
	if c.Relay.HistoryLimit == 0 {
		c.Relay.HistoryLimit = DefaultHistoryLimit
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Teams.WebhookURL == "" {
		return fmt.Errorf("teams.webhook_url is required")
	}
	u, err := url.Parse(c.Teams.WebhookURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("teams.webhook_url is not a valid URL: %q", c.Teams.WebhookURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("teams.webhook_url must use http or https, got %q", u.Scheme)
	}

	if c.Relay.HistoryLimit < 0 {
		return fmt.Errorf("relay.history_limit must not be negative")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json; got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Relay.TimeoutRaw != "" {
		cfg.Relay.Timeout, err = time.ParseDuration(cfg.Relay.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing relay.timeout %q: %w", cfg.Relay.TimeoutRaw, err)
		}
	}

	if cfg.Relay.DedupeTTLRaw != "" {
		cfg.Relay.DedupeTTL, err = time.ParseDuration(cfg.Relay.DedupeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing relay.dedupe_ttl %q: %w", cfg.Relay.DedupeTTLRaw, err)
		}
	}

	return nil
}
