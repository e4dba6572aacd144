// ABOUTME: Bridge orchestrator wiring the relay, hub, and HTTP server
// ABOUTME: Manages startup, health endpoints, and graceful shutdown

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/filoffee/teambridge/internal/auth"
	"github.com/filoffee/teambridge/internal/config"
	"github.com/filoffee/teambridge/internal/dedupe"
	"github.com/filoffee/teambridge/internal/directory"
	"github.com/filoffee/teambridge/internal/hub"
	"github.com/filoffee/teambridge/internal/relay"
	"github.com/filoffee/teambridge/internal/teams"
)

// Bridge orchestrates the teambridge server components. It owns the
// relay engine, the websocket hub for widget connections, and the HTTP
// server carrying both the REST API and the webhook endpoint.
type Bridge struct {
	config     *config.Config
	registry   *directory.Registry
	relay      *relay.Relay
	hub        *hub.Hub
	dedupe     *dedupe.Cache
	verifier   *auth.JWTVerifier
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a bridge from configuration. The user catalog comes from
// the configured TOML file, or the built-in catalog when none is set.
func New(cfg *config.Config, logger *slog.Logger) (*Bridge, error) {
	registry, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		config:   cfg,
		registry: registry,
		dedupe:   dedupe.New(cfg.Relay.DedupeTTL, 0),
		logger:   logger.With("component", "bridge"),
	}

	if cfg.Auth.JWTSecret != "" {
		b.verifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		logger.Info("widget auth enabled")
	} else {
		logger.Warn("widget auth disabled - no jwt_secret configured")
	}

	b.hub, err = hub.New(hub.Options{
		Registry:  registry,
		Authorize: b.authorizeJoin,
		Send:      b.sendFromSocket,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating hub: %w", err)
	}

	sender := teams.NewClient(cfg.Teams.WebhookURL, cfg.Relay.Timeout, logger)
	b.relay, err = relay.New(relay.Options{
		Registry:     registry,
		Sender:       platformSender{sender},
		Hub:          b.hub,
		Dedupe:       b.dedupe,
		Logger:       logger,
		Timeout:      cfg.Relay.Timeout,
		HistoryLimit: cfg.Relay.HistoryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("creating relay: %w", err)
	}

	b.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           b.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return b, nil
}

// loadRegistry builds the user registry from config.
func loadRegistry(cfg *config.Config) (*directory.Registry, error) {
	if cfg.Directory.Catalog == "" {
		return directory.DefaultRegistry(), nil
	}
	registry, err := directory.LoadCatalog(cfg.Directory.Catalog)
	if err != nil {
		return nil, fmt.Errorf("loading user catalog: %w", err)
	}
	return registry, nil
}

// platformSender adapts teams.Client to the relay's sender contract.
type platformSender struct {
	client *teams.Client
}

func (s platformSender) Post(ctx context.Context, text string) (relay.PlatformResult, error) {
	result, err := s.client.Post(ctx, text)
	if err != nil {
		return relay.PlatformResult{}, err
	}
	return relay.PlatformResult{ConversationID: result.ConversationID}, nil
}

// authorizeJoin validates the token on a websocket join. With auth
// disabled every join for a known user is allowed.
func (b *Bridge) authorizeJoin(userID, token string) error {
	if b.verifier == nil {
		return nil
	}
	subject, err := b.verifier.Verify(token)
	if err != nil {
		return err
	}
	if subject != userID {
		return fmt.Errorf("token does not match user")
	}
	return nil
}

// sendFromSocket relays a message typed over the websocket.
func (b *Bridge) sendFromSocket(userID, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.config.Relay.Timeout)
	defer cancel()
	return b.relay.Send(ctx, userID, text)
}

// Run starts the HTTP server and blocks until the context is canceled
// or the server fails. Returns nil on graceful shutdown.
func (b *Bridge) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", b.config.Server.HTTPAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		b.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := b.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	serverErr := b.waitForShutdownSignal(ctx, errCh)
	shutdownErr := b.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// waitForShutdownSignal waits for context cancellation or a server error.
func (b *Bridge) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		b.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		b.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown shuts down with a fresh context since the run context
// is already canceled by the time it is called.
func (b *Bridge) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.Shutdown(ctx)
}

// Shutdown stops the HTTP server and releases resources.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.logger.Info("shutting down bridge")

	err := b.httpServer.Shutdown(ctx)
	b.dedupe.Close()

	if err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

// handleHealth returns 200 OK while the server is alive.
func (b *Bridge) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady reports readiness along with basic relay state. The bridge
// is ready as soon as it is serving; the counts help operators see
// whether any widget is connected and how many threads are mapped.
func (b *Bridge) handleReady(w http.ResponseWriter, r *http.Request) {
	connections := 0
	for _, u := range b.registry.Users() {
		connections += b.hub.Members(u.ID)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d connections, %d conversations)", connections, b.relay.ConvMap().Len())
}
