// ABOUTME: MCP tool handler implementations for the jarvis memory server
// ABOUTME: Validation problems explain the expected input; storage failures return one generic message
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jerryymjo/jarvis-memory/internal/app"
	"github.com/jerryymjo/jarvis-memory/internal/core"
	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/models"
	"github.com/jerryymjo/jarvis-memory/internal/scheduler"
	"github.com/jerryymjo/jarvis-memory/internal/storage"
)

// StorageUnavailable is the user-facing text for any backend failure
const StorageUnavailable = "Memory storage is unavailable right now."

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	app *app.App
	log *logger.Logger
}

func NewHandlers(a *app.App) *Handlers {
	return &Handlers{app: a, log: a.Log.With("component", "mcp")}
}

// RecordTurn handles the record_turn tool
func (h *Handlers) RecordTurn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := chatIDArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	userText, err := request.RequireString("user_text")
	if err != nil {
		return mcp.NewToolResultError("user_text argument is required and must be a string"), nil
	}
	assistantText, err := request.RequireString("assistant_text")
	if err != nil {
		return mcp.NewToolResultError("assistant_text argument is required and must be a string"), nil
	}
	messageLog, err := messageLogArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	h.app.Manager.OnTurnComplete(ctx, chatID, userText, assistantText, messageLog)

	return jsonResult(map[string]interface{}{
		"recorded": true,
		"turn":     h.app.Manager.TurnCount(chatID),
	})
}

// GetMemoryContext handles the get_memory_context tool
func (h *Handlers) GetMemoryContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := chatIDArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	return jsonResult(map[string]interface{}{
		"context": h.app.Manager.GetRelevantContext(ctx, chatID, query),
	})
}

// SetAlarm handles the set_alarm tool
func (h *Handlers) SetAlarm(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := chatIDArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message, err := request.RequireString("message")
	if err != nil || strings.TrimSpace(message) == "" {
		return mcp.NewToolResultError("message argument is required and must be a non-empty string"), nil
	}
	fireAtRaw, err := request.RequireString("fire_at")
	if err != nil {
		return mcp.NewToolResultError("fire_at argument is required, e.g. 2026-03-06T08:00:00+09:00"), nil
	}
	fireAt, err := scheduler.ParseFireAt(fireAtRaw, h.app.Scheduler.Location())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	repeat := models.ParseRepeat(request.GetString("repeat", ""))

	alarm, err := h.app.Scheduler.CreateAlarm(ctx, chatID, message, fireAt, repeat)
	if err != nil {
		return h.failure("set_alarm", err), nil
	}

	return jsonResult(map[string]interface{}{
		"alarm_id": alarm.ID,
		"fire_at":  alarm.FireAt.Format(time.RFC3339),
		"repeat":   repeatLabel(alarm.Repeat),
		"message":  alarm.Message,
	})
}

// SetBriefing handles the set_briefing tool
func (h *Handlers) SetBriefing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := chatIDArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	timeOfDay, err := request.RequireString("time")
	if err != nil {
		return mcp.NewToolResultError("time argument is required, as HH:MM"), nil
	}

	if err := h.app.Scheduler.CreateBriefing(ctx, chatID, strings.TrimSpace(timeOfDay)); err != nil {
		return h.failure("set_briefing", err), nil
	}

	return jsonResult(map[string]interface{}{
		"chat_id":  chatID,
		"time":     strings.TrimSpace(timeOfDay),
		"timezone": h.app.Scheduler.Location().String(),
		"active":   true,
	})
}

// StopBriefing handles the stop_briefing tool
func (h *Handlers) StopBriefing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := chatIDArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stopped, err := h.app.Scheduler.StopBriefing(ctx, chatID)
	if err != nil {
		return h.failure("stop_briefing", err), nil
	}

	return jsonResult(map[string]interface{}{
		"stopped": stopped,
	})
}

// SaveMemo handles the save_memo tool
func (h *Handlers) SaveMemo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := chatIDArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := request.RequireString("content")
	if err != nil || strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("content argument is required and must be a non-empty string"), nil
	}

	memo, err := h.app.Memos.SaveMemo(ctx, chatID, content, request.GetString("category", ""))
	if err != nil {
		return h.failure("save_memo", err), nil
	}

	return jsonResult(map[string]interface{}{
		"memo": newMemoView(*memo, 0),
	})
}

// SearchMemo handles the search_memo tool
func (h *Handlers) SearchMemo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := chatIDArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	hits, err := h.app.Memos.SearchMemos(ctx, chatID, query, core.DefaultMemoSearchLimit)
	if err != nil {
		return h.failure("search_memo", err), nil
	}

	return jsonResult(map[string]interface{}{
		"memos": matchViews(hits),
	})
}

// ListMemos handles the list_memos tool
func (h *Handlers) ListMemos(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := chatIDArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	memos, err := h.app.Memos.ListMemos(ctx, chatID)
	if err != nil {
		return h.failure("list_memos", err), nil
	}

	views := make([]memoView, 0, len(memos))
	for _, m := range memos {
		views = append(views, newMemoView(m, 0))
	}
	return jsonResult(map[string]interface{}{
		"memos": views,
	})
}

// DeleteMemo handles the delete_memo tool
func (h *Handlers) DeleteMemo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := chatIDArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	memo, err := h.app.Memos.DeleteMemo(ctx, chatID, query)
	if err != nil {
		return h.failure("delete_memo", err), nil
	}

	return jsonResult(map[string]interface{}{
		"deleted": newMemoView(*memo, 0),
	})
}

// failure turns err into a tool error. Anything that is not a user input
// problem is logged and reported generically.
func (h *Handlers) failure(tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, scheduler.ErrFireTimeInPast),
		errors.Is(err, scheduler.ErrInvalidFireAt),
		errors.Is(err, scheduler.ErrInvalidTime):
		return mcp.NewToolResultError(err.Error())
	case errors.Is(err, core.ErrNoMatchingMemo):
		return mcp.NewToolResultError("No memo matches that description.")
	}
	h.log.Error("Tool failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(StorageUnavailable)
}

type memoView struct {
	ID        string  `json:"memo_id"`
	ShortID   string  `json:"short_id"`
	Content   string  `json:"content"`
	Category  string  `json:"category"`
	Timestamp string  `json:"timestamp"`
	Score     float64 `json:"score,omitempty"`
}

func newMemoView(m models.Memo, score float64) memoView {
	return memoView{
		ID:        m.ID,
		ShortID:   m.ShortID(),
		Content:   m.Content,
		Category:  string(m.Category),
		Timestamp: m.Timestamp.Format(time.RFC3339),
		Score:     score,
	}
}

func matchViews(hits []storage.Match[models.Memo]) []memoView {
	views := make([]memoView, 0, len(hits))
	for _, hit := range hits {
		views = append(views, newMemoView(hit.Item, hit.Score))
	}
	return views
}

func repeatLabel(r models.Repeat) string {
	if r == models.RepeatNone {
		return "none"
	}
	return string(r)
}

// chatIDArg accepts chat_id as a JSON number or a decimal string.
func chatIDArg(request mcp.CallToolRequest) (int64, error) {
	raw, ok := request.GetArguments()["chat_id"]
	if !ok || raw == nil {
		return 0, errors.New("chat_id argument is required and must be an integer")
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("chat_id must be an integer, got %v", v)
		}
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("chat_id must be an integer, got %q", v)
		}
		return id, nil
	}
	return 0, errors.New("chat_id must be an integer")
}

// messageLogArg accepts the log as a JSON value or as a string holding JSON.
func messageLogArg(request mcp.CallToolRequest) (json.RawMessage, error) {
	raw, ok := request.GetArguments()["message_log"]
	if !ok || raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok {
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		if !json.Valid([]byte(s)) {
			return nil, errors.New("message_log must be valid JSON")
		}
		return json.RawMessage(s), nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("message_log must be valid JSON: %w", err)
	}
	return data, nil
}

func jsonResult(response map[string]interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
