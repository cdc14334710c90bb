// ABOUTME: Serve command runs the MCP server on stdio
// ABOUTME: Restores alarms, briefings, and chat histories before accepting tool calls
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/jerryymjo/jarvis-memory/internal/app"
	"github.com/jerryymjo/jarvis-memory/internal/config"
	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/mcp"
)

// shutdownTimeout bounds how long in-flight insight extraction may delay exit
const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the MCP server on stdio.

Connects to the vector store, creates missing collections, re-arms
stored alarms and briefings, and then serves the memory tools.
Scheduled alarms and briefings reach the client as
"notifications/jarvis/deliver" notifications.

Examples:
  jarvis serve
  VECTOR_STORE=chromem jarvis serve

  # claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "jarvis": {
  #       "command": "jarvis",
  #       "args": ["serve"]
  #     }
  #   }
  # }`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	if quiet {
		log = log.SetLevel(zapcore.ErrorLevel)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return Serve(ctx, cfg, log, versionInfo.Version)
}

// Serve runs the MCP server on stdio until ctx is done or the transport
// fails, then shuts the application down.
func Serve(ctx context.Context, cfg *config.Config, log *logger.Logger, version string) error {
	notifier := mcp.NewNotifier()
	a, err := app.New(ctx, cfg, log, app.WithDeliver(notifier.Deliver))
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	if _, err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	server, _ := mcp.NewServer(a, notifier, version)

	log.Info("Jarvis MCP server starting on stdio", "version", version, "store", cfg.VectorStore)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received, gracefully shutting down")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error closing storage", "error", err)
	}
	log.Info("Shutdown complete")
	return runErr
}
