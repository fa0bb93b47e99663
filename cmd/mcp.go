package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/calconnect/internal/config"
	"github.com/teemow/calconnect/internal/instrumentation"
	"github.com/teemow/calconnect/internal/logging"
	"github.com/teemow/calconnect/internal/server"
)

func newMCPCmd() *cobra.Command {
	var (
		userID string
		yolo   bool
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the integration tools over MCP stdio",
		Long: `Serve the integration tools to a local AI assistant over standard
input/output. Every tool call acts for the user given with --user unless the
call passes user_id.

OAuth callbacks still arrive at the HTTP API, so connecting a new app requires
a running "calconnect serve" against the same database.

Safety Mode:
  By default, the server operates in read-only mode.
  Use --yolo to enable calendar selection and disconnect tools.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if userID == "" {
				userID = os.Getenv("CALCONNECT_USER_ID")
			}
			return runMCP(cfg, userID, !yolo)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User the tools act for by default. Can also use CALCONNECT_USER_ID env var.")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (calendar selection, disconnect). Default is read-only mode.")

	return cmd
}

func runMCP(cfg config.Config, userID string, readOnly bool) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, instrConfig, err := newInstrumentation(shutdownCtx)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	audit := instrumentation.NewAuditLogger(logging.WithComponent(logger, "audit"), instrConfig.AuditLogging)
	app, err := buildComponents(shutdownCtx, cfg, provider, audit, logger, server.WithDefaultUserID(userID))
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("shutdown failed", logging.Err(err))
		}
	}()

	mcpSrv, err := newMCPServer(app.server, readOnly)
	if err != nil {
		return err
	}
	return runStdioServer(mcpSrv)
}

// runStdioServer serves until stdin closes or the process receives SIGINT or
// SIGTERM, which ServeStdio handles itself.
func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}
