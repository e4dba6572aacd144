// ABOUTME: User catalog loading from TOML files with environment variable expansion
// ABOUTME: Falls back to the built-in demo catalog when no file is configured

package directory

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// catalogFile is the on-disk TOML shape:
//
//	[[users]]
//	id = "user1"
//	name = "Titan"
//	email = "Titan@example.com"
type catalogFile struct {
	Users []User `toml:"users"`
}

// LoadCatalog reads a TOML user catalog from the given path and returns a
// registry built from it. Environment variables in the format ${VAR_NAME}
// are expanded before parsing.
func LoadCatalog(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading user catalog: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cf catalogFile
	if _, err := toml.Decode(expanded, &cf); err != nil {
		return nil, fmt.Errorf("parsing user catalog: %w", err)
	}

	r, err := NewRegistry(cf.Users)
	if err != nil {
		return nil, fmt.Errorf("validating user catalog: %w", err)
	}
	return r, nil
}

// DefaultRegistry returns the built-in catalog used when no catalog file is
// configured. The three demo users match the chat widget's user map.
func DefaultRegistry() *Registry {
	r, err := NewRegistry([]User{
		{ID: "user1", Name: "Titan", Email: "Titan@example.com"},
		{ID: "user2", Name: "DCathelon", Email: "DCathelon@example.com"},
		{ID: "user3", Name: "DRL", Email: "DRL@example.com"},
	})
	if err != nil {
		// The built-in catalog is static and valid by construction.
		panic(err)
	}
	return r
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
