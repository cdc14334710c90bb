// ABOUTME: Main entry point for the jarvis MCP server with stdio transport
// ABOUTME: Same as "jarvis serve" for deployments that expect a dedicated binary
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata"

	"github.com/jerryymjo/jarvis-memory/cmd/jarvis/commands"
	"github.com/jerryymjo/jarvis-memory/internal/config"
	"github.com/jerryymjo/jarvis-memory/internal/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logs, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logs.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Serve(ctx, cfg, logs, version); err != nil {
		logs.Error("Server stopped", "error", err)
		logs.Sync()
		os.Exit(1)
	}
}
