package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTP server timeouts.
const (
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultWriteTimeout leaves room for an OAuth exchange plus a store write.
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 120 * time.Second
)

// Config configures the HTTP API server.
type Config struct {
	Addr string
	// FrontendIntegrationURL receives the browser after an OAuth callback.
	FrontendIntegrationURL string
	Version                string
	// MCPServer, when set, is served over streamable HTTP at /mcp.
	MCPServer *mcpserver.MCPServer
	Logger    *slog.Logger
}

// HTTPServer serves the integration API, health checks and optional MCP endpoint.
type HTTPServer struct {
	httpServer *http.Server
	health     *HealthChecker
	handler    http.Handler
	logger     *slog.Logger
}

// NewHTTPServer builds the server. It does not start listening.
func NewHTTPServer(sc *ServerContext, cfg Config) (*HTTPServer, error) {
	if sc == nil || sc.Service() == nil {
		return nil, errors.New("server context with a service is required")
	}
	if err := validateRedirectTarget(cfg.FrontendIntegrationURL); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &HTTPServer{
		health: NewHealthChecker(sc, cfg.Version),
		logger: cfg.Logger,
	}

	mux := http.NewServeMux()
	s.health.RegisterHealthEndpoints(mux)
	NewAPI(sc.Service(), cfg.FrontendIntegrationURL, cfg.Logger).Register(mux)
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer,
			mcpserver.WithEndpointPath("/mcp"),
		))
	}

	s.handler = otelhttp.NewHandler(userContext(recordRequests(sc.Metrics(), mux)), "calconnect.http")
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return sc.Context() },
	}
	return s, nil
}

// Handler returns the fully wrapped root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Health returns the health checker, e.g. to flip readiness during shutdown.
func (s *HTTPServer) Health() *HealthChecker {
	return s.health
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a clean shutdown.
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown marks the server not ready and drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	return s.httpServer.Shutdown(ctx)
}

// validateRedirectTarget requires an absolute https URL. Plain http is
// allowed only for loopback hosts during development.
func validateRedirectTarget(raw string) error {
	if raw == "" {
		return errors.New("frontend integration URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid frontend integration URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		if u.Host == "" {
			return fmt.Errorf("frontend integration URL %q has no host", raw)
		}
		return nil
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("frontend integration URL must use https outside localhost (got: %s)", raw)
		}
		return nil
	default:
		return fmt.Errorf("invalid URL scheme: %q. Must be http (localhost only) or https", u.Scheme)
	}
}
