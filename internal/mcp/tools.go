// ABOUTME: MCP tool definitions and registration for the jarvis memory server
// ABOUTME: Defines JSON schemas for the turn, context, alarm, briefing, and memo tools
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jerryymjo/jarvis-memory/internal/app"
)

var chatIDProperty = map[string]interface{}{
	"type":        "integer",
	"description": "Chat the request belongs to",
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, a *app.App) *Handlers {
	handlers := NewHandlers(a)

	// 1. record_turn - persist a finished exchange
	server.AddTool(mcp.Tool{
		Name:        "record_turn",
		Description: "Record a completed user/assistant exchange. Saves the turn for retrieval, snapshots the chat's message log, and periodically extracts insights about the user.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chat_id": chatIDProperty,
				"user_text": map[string]interface{}{
					"type":        "string",
					"description": "What the user said",
				},
				"assistant_text": map[string]interface{}{
					"type":        "string",
					"description": "What the assistant answered",
				},
				"message_log": map[string]interface{}{
					"description": "Full message log of the chat as JSON, restored after a restart",
				},
			},
			Required: []string{"chat_id", "user_text", "assistant_text"},
		},
	}, handlers.RecordTurn)

	// 2. get_memory_context - context block for the system prompt
	server.AddTool(mcp.Tool{
		Name:        "get_memory_context",
		Description: "Get memory context relevant to a message: known facts about the user, saved memos, and related past conversations. Empty when nothing is relevant.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chat_id": chatIDProperty,
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The user's message",
				},
			},
			Required: []string{"chat_id", "query"},
		},
	}, handlers.GetMemoryContext)

	// 3. set_alarm
	server.AddTool(mcp.Tool{
		Name:        "set_alarm",
		Description: "Set a reminder that fires once, daily, or weekly. Survives restarts.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chat_id": chatIDProperty,
				"message": map[string]interface{}{
					"type":        "string",
					"description": "Reminder text",
				},
				"fire_at": map[string]interface{}{
					"type":        "string",
					"description": "ISO-8601 time, e.g. 2026-03-06T08:00:00+09:00. Without an offset the scheduler timezone is used.",
				},
				"repeat": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"none", "daily", "weekly"},
					"description": "Recurrence (default: none)",
				},
			},
			Required: []string{"chat_id", "message", "fire_at"},
		},
	}, handlers.SetAlarm)

	// 4. set_briefing
	server.AddTool(mcp.Tool{
		Name:        "set_briefing",
		Description: "Schedule a daily briefing at HH:MM in the scheduler timezone. Replaces the chat's previous briefing time.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chat_id": chatIDProperty,
				"time": map[string]interface{}{
					"type":        "string",
					"description": "24-hour time, e.g. 07:30",
				},
			},
			Required: []string{"chat_id", "time"},
		},
	}, handlers.SetBriefing)

	// 5. stop_briefing
	server.AddTool(mcp.Tool{
		Name:        "stop_briefing",
		Description: "Stop the chat's daily briefing.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chat_id": chatIDProperty,
			},
			Required: []string{"chat_id"},
		},
	}, handlers.StopBriefing)

	// 6. save_memo
	server.AddTool(mcp.Tool{
		Name:        "save_memo",
		Description: "Save a memo, note, or bookmark the user asked to keep.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chat_id": chatIDProperty,
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Text to keep",
				},
				"category": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"memo", "bookmark", "note"},
					"description": "Kind of memo (default: memo)",
				},
			},
			Required: []string{"chat_id", "content"},
		},
	}, handlers.SaveMemo)

	// 7. search_memo
	server.AddTool(mcp.Tool{
		Name:        "search_memo",
		Description: "Search the chat's memos by meaning.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chat_id": chatIDProperty,
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What to look for",
				},
			},
			Required: []string{"chat_id", "query"},
		},
	}, handlers.SearchMemo)

	// 8. list_memos
	server.AddTool(mcp.Tool{
		Name:        "list_memos",
		Description: "List every memo saved in the chat, oldest first.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chat_id": chatIDProperty,
			},
			Required: []string{"chat_id"},
		},
	}, handlers.ListMemos)

	// 9. delete_memo
	server.AddTool(mcp.Tool{
		Name:        "delete_memo",
		Description: "Delete the memo that best matches a description.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chat_id": chatIDProperty,
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Description of the memo to delete",
				},
			},
			Required: []string{"chat_id", "query"},
		},
	}, handlers.DeleteMemo)

	return handlers
}
