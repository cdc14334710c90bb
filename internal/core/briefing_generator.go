// ABOUTME: BriefingGenerator produces the daily briefing text for a chat
// ABOUTME: Memory context is passed in the request's own system prompt, never through shared state
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/llm"
	"github.com/jerryymjo/jarvis-memory/internal/logger"
)

// EmptyBriefing is sent when the model has nothing to report
const EmptyBriefing = "Nothing to brief today."

const (
	DefaultBriefingQuery = "today's schedule, unread mail, and open tasks"

	briefingSystemPrompt = "You are Jarvis, a concise personal assistant. Use the memory context below when it is relevant."
	briefingPrompt       = "Summarize today's schedule, unread mail, and open tasks. Keep it short, in briefing format."
)

type BriefingGenerator struct {
	llm      llm.Completer
	hydrator *ContextHydrator
	log      *logger.Logger
	query    string
	loc      *time.Location
	now      func() time.Time
}

func NewBriefingGenerator(completer llm.Completer, hydrator *ContextHydrator, log *logger.Logger, query string, loc *time.Location) *BriefingGenerator {
	if query == "" {
		query = DefaultBriefingQuery
	}
	if loc == nil {
		loc = time.UTC
	}
	return &BriefingGenerator{
		llm:      completer,
		hydrator: hydrator,
		log:      log.With("component", "briefing_generator"),
		query:    query,
		loc:      loc,
		now:      time.Now,
	}
}

// Summarize generates the briefing text. A context lookup failure degrades
// to no context; a completion failure is returned.
func (g *BriefingGenerator) Summarize(ctx context.Context, chatID int64) (string, error) {
	memoryContext, err := g.hydrator.Hydrate(ctx, chatID, g.query)
	if err != nil {
		g.log.Warn("Briefing without memory context", "chat_id", chatID, "error", err)
		memoryContext = ""
	}

	out, err := g.llm.Complete(ctx, llm.CompletionRequest{
		System:      g.systemPrompt(memoryContext),
		Prompt:      briefingPrompt,
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate briefing: %w", err)
	}

	text := StripThink(out)
	if text == "" {
		return EmptyBriefing, nil
	}
	return text, nil
}

func (g *BriefingGenerator) systemPrompt(memoryContext string) string {
	var sb strings.Builder
	sb.WriteString(briefingSystemPrompt)
	sb.WriteString("\nToday is ")
	sb.WriteString(g.now().In(g.loc).Format("Monday, 2006-01-02"))
	sb.WriteString(".")
	if memoryContext != "" {
		sb.WriteString("\n\n")
		sb.WriteString(memoryContext)
	}
	return sb.String()
}
