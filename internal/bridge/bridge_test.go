// ABOUTME: Lifecycle tests for the bridge orchestrator
// ABOUTME: Covers construction failures, catalog loading, and Run shutdown

package bridge

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filoffee/teambridge/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func minimalConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Teams.WebhookURL = "https://example.webhook.office.com/webhookb2/abc"
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Relay.Timeout = time.Second
	cfg.Relay.DedupeTTL = time.Minute
	cfg.Relay.HistoryLimit = 50
	return cfg
}

func TestNewUsesBuiltinCatalogByDefault(t *testing.T) {
	b, err := New(minimalConfig(), testLogger())
	require.NoError(t, err)
	t.Cleanup(b.dedupe.Close)

	assert.Equal(t, 3, b.registry.Len())
}

func TestNewLoadsCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.toml")
	catalog := `
[[users]]
id = "alpha"
name = "Alpha"
email = "alpha@example.com"
`
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0o600))

	cfg := minimalConfig()
	cfg.Directory.Catalog = path

	b, err := New(cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(b.dedupe.Close)

	assert.Equal(t, 1, b.registry.Len())
	user, err := b.registry.ByID("alpha")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", user.Name)
}

func TestNewCatalogFileMissing(t *testing.T) {
	cfg := minimalConfig()
	cfg.Directory.Catalog = filepath.Join(t.TempDir(), "nope.toml")

	_, err := New(cfg, testLogger())
	require.Error(t, err)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	b, err := New(minimalConfig(), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRunFailsOnBusyAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := minimalConfig()
	cfg.Server.HTTPAddr = ln.Addr().String()
	b, err := New(cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(b.dedupe.Close)

	assert.Error(t, b.Run(context.Background()))
}
