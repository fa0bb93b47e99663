package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/calconnect/internal/calendar"
	"github.com/teemow/calconnect/internal/config"
	"github.com/teemow/calconnect/internal/instrumentation"
	"github.com/teemow/calconnect/internal/integration"
	"github.com/teemow/calconnect/internal/logging"
	"github.com/teemow/calconnect/internal/oauth"
	"github.com/teemow/calconnect/internal/server"
	"github.com/teemow/calconnect/internal/service"
	"github.com/teemow/calconnect/internal/state"
	"github.com/teemow/calconnect/internal/store"
)

// components is the wired application shared by the serve and mcp commands.
type components struct {
	store   store.Store
	service *service.Service
	server  *server.ServerContext
}

// buildComponents wires registry, state codec, store, OAuth engine, calendar
// adapter and facade from cfg. instr may be disabled but must not be nil.
func buildComponents(ctx context.Context, cfg config.Config, instr *instrumentation.Provider, audit *instrumentation.AuditLogger, log *slog.Logger, opts ...server.ContextOption) (*components, error) {
	for _, p := range cfg.UnconfiguredProviders() {
		log.Warn("OAuth client not configured, connecting its apps will fail", logging.Provider(p))
	}

	registry, err := integration.NewRegistry(cfg.Credentials())
	if err != nil {
		return nil, fmt.Errorf("failed to build provider registry: %w", err)
	}

	codec, err := state.NewCodec([]byte(cfg.StateSecret), state.WithTTL(cfg.StateTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to create state codec: %w", err)
	}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	metrics := instr.Metrics()
	engine := oauth.NewEngine(registry, codec,
		oauth.WithHTTPClient(&http.Client{
			Timeout:   cfg.OAuthHTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
		oauth.WithMetrics(metrics),
		oauth.WithLogger(log),
	)
	adapter := calendar.NewAdapter(calendar.Config{
		GoogleEndpoint: cfg.GoogleAPIEndpoint,
		GraphBaseURL:   cfg.GraphBaseURL,
		HTTPClient:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Timeout:        cfg.ProviderAPITimeout,
		Metrics:        metrics,
		Logger:         log,
	})
	svc := service.New(engine, st, adapter, codec,
		service.WithAuditLogger(audit),
		service.WithLogger(log),
	)

	ctxOpts := []server.ContextOption{server.WithInstrumentation(metrics, audit)}
	if p, ok := st.(server.Pinger); ok {
		ctxOpts = append(ctxOpts, server.WithPinger(p))
	}
	ctxOpts = append(ctxOpts, opts...)

	return &components{
		store:   st,
		service: svc,
		server:  server.NewServerContext(ctx, svc, ctxOpts...),
	}, nil
}

// openStore opens the configured store with token encryption applied.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, error) {
	cipher, err := store.NewTokenCipherFromBase64(cfg.TokenEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid CALCONNECT_TOKEN_ENCRYPTION_KEY: %w", err)
	}
	if !cipher.Enabled() {
		log.Warn("CALCONNECT_TOKEN_ENCRYPTION_KEY not set, OAuth tokens are stored unencrypted")
	}

	st, err := store.Open(ctx, cfg.DatabaseURL, store.WithCipher(cipher), store.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// Close stops the server context and closes the store.
func (c *components) Close() error {
	return errors.Join(c.server.Shutdown(), c.store.Close())
}

// newInstrumentation loads the OpenTelemetry config and starts the provider.
func newInstrumentation(ctx context.Context) (*instrumentation.Provider, instrumentation.Config, error) {
	instrConfig, err := instrumentation.LoadConfig()
	if err != nil {
		return nil, instrumentation.Config{}, err
	}
	instrConfig.ServiceVersion = version
	if err := instrConfig.Validate(); err != nil {
		return nil, instrumentation.Config{}, fmt.Errorf("invalid instrumentation config: %w", err)
	}

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, instrumentation.Config{}, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	return provider, instrConfig, nil
}
