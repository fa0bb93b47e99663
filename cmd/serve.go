package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/calconnect/internal/config"
	"github.com/teemow/calconnect/internal/instrumentation"
	"github.com/teemow/calconnect/internal/logging"
	"github.com/teemow/calconnect/internal/server"
	"github.com/teemow/calconnect/internal/tools/integration_tools"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// serveOptions are the flags of the serve command. Unset values fall back to
// the environment.
type serveOptions struct {
	httpAddr   string
	disableMCP bool
	yolo       bool
	metrics    MetricsConfig
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the integration HTTP API",
		Long: `Start the HTTP API used by the scheduling frontend to connect, inspect and
disconnect third-party apps, and to receive the OAuth callbacks of Google, Zoom
and Microsoft.

Requests identify the user with the X-User-ID header, set by the
authenticating gateway in front of this service.

The MCP endpoint is served at /mcp unless --disable-mcp is set.

Safety Mode:
  By default, MCP clients get read-only tools only.
  Use --yolo to enable calendar selection and disconnect tools.

Configuration is read from the environment:
  CALCONNECT_STATE_SECRET (required), CALCONNECT_DATABASE_URL,
  CALCONNECT_TOKEN_ENCRYPTION_KEY, FRONTEND_INTEGRATION_URL,
  GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, GOOGLE_REDIRECT_URI,
  ZOOM_CLIENT_ID, ZOOM_CLIENT_SECRET, ZOOM_REDIRECT_URI,
  MS_CLIENT_ID, MS_CLIENT_SECRET, MS_REDIRECT_URI.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if !cmd.Flags().Changed("http-addr") {
				opts.httpAddr = cfg.HTTPAddr
			}
			if !cmd.Flags().Changed("metrics-addr") {
				opts.metrics.Addr = cfg.MetricsAddr
			}
			if !cmd.Flags().Changed("metrics-enabled") && os.Getenv("METRICS_ENABLED") == "false" {
				opts.metrics.Enabled = false
			}
			return runServe(cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", ":8080", "HTTP server address. Can also use CALCONNECT_HTTP_ADDR env var.")
	cmd.Flags().BoolVar(&opts.disableMCP, "disable-mcp", false, "Do not serve the MCP endpoint at /mcp")
	cmd.Flags().BoolVar(&opts.yolo, "yolo", false, "Enable MCP write tools (calendar selection, disconnect). Default is read-only mode.")
	cmd.Flags().BoolVar(&opts.metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.metrics.Addr, "metrics-addr", ":9090", "Metrics server address. Can also use CALCONNECT_METRICS_ADDR env var.")

	return cmd
}

func runServe(cfg config.Config, opts serveOptions) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, instrConfig, err := newInstrumentation(shutdownCtx)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	audit := instrumentation.NewAuditLogger(logging.WithComponent(logger, "audit"), instrConfig.AuditLogging)
	app, err := buildComponents(shutdownCtx, cfg, provider, audit, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("shutdown failed", logging.Err(err))
		}
	}()

	var metricsServer *server.MetricsServer
	if opts.metrics.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.metrics.Addr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Error("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	var mcpSrv *mcpserver.MCPServer
	if !opts.disableMCP {
		mcpSrv, err = newMCPServer(app.server, !opts.yolo)
		if err != nil {
			return err
		}
		if opts.yolo {
			logger.Info("MCP write tools enabled (--yolo flag is set)")
		} else {
			logger.Info("MCP tools in READ-ONLY mode (use --yolo to enable write operations)")
		}
	}

	httpServer, err := server.NewHTTPServer(app.server, server.Config{
		Addr:                   opts.httpAddr,
		FrontendIntegrationURL: cfg.FrontendIntegrationURL,
		Version:                version,
		MCPServer:              mcpSrv,
		Logger:                 logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

// newMCPServer creates the MCP server with the integration tools registered.
func newMCPServer(sc *server.ServerContext, readOnly bool) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("calconnect", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := integration_tools.RegisterIntegrationTools(mcpSrv, sc, readOnly); err != nil {
		return nil, fmt.Errorf("failed to register integration tools: %w", err)
	}
	return mcpSrv, nil
}
