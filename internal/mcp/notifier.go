// ABOUTME: Delivers scheduled alarm and briefing text to MCP clients as notifications
// ABOUTME: Created before the server so the scheduler callback can be wired first
package mcp

import (
	"context"
	"errors"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// DeliverMethod is the notification clients receive for scheduled messages
const DeliverMethod = "notifications/jarvis/deliver"

// ErrNotAttached is returned when delivering before a server is attached
var ErrNotAttached = errors.New("notifier has no MCP server attached")

type Notifier struct {
	mu     sync.RWMutex
	server *mcpserver.MCPServer
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// Attach sets the server notifications go through.
func (n *Notifier) Attach(server *mcpserver.MCPServer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.server = server
}

// Deliver matches scheduler.DeliverFunc.
func (n *Notifier) Deliver(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.RLock()
	server := n.server
	n.mu.RUnlock()
	if server == nil {
		return ErrNotAttached
	}

	server.SendNotificationToAllClients(DeliverMethod, map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	return nil
}
