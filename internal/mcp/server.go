// ABOUTME: Builds the MCP server with every tool registered
// ABOUTME: Attaches the notifier so scheduled deliveries reach connected clients
package mcp

import (
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jerryymjo/jarvis-memory/internal/app"
)

const ServerName = "Jarvis Memory"

// NewServer creates the server and registers the tools. notifier may be nil.
func NewServer(a *app.App, notifier *Notifier, version string) (*mcpserver.MCPServer, *Handlers) {
	server := mcpserver.NewMCPServer(
		ServerName,
		version,
		mcpserver.WithToolCapabilities(false),
	)
	handlers := RegisterTools(server, a)
	if notifier != nil {
		notifier.Attach(server)
	}
	return server, handlers
}
