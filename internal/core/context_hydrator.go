// ABOUTME: ContextHydrator builds the memory context block injected into the assistant's system prompt
// ABOUTME: Embeds the query once and searches insights, memos, and past conversations in parallel
package core

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jerryymjo/jarvis-memory/internal/models"
	"github.com/jerryymjo/jarvis-memory/internal/storage"
)

// Section headers of the rendered context, in render order
const (
	InsightsHeader      = "=== What I know about the user ==="
	MemosHeader         = "=== Memos the user saved ==="
	ConversationsHeader = "=== Related past conversations ==="
)

// Embedder turns text into a normalized vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ContextOptions are the per-source limits and score floors
type ContextOptions struct {
	InsightLimit         int
	InsightMinScore      float64
	MemoLimit            int
	MemoMinScore         float64
	ConversationLimit    int
	ConversationMinScore float64
}

func DefaultContextOptions() ContextOptions {
	return ContextOptions{
		InsightLimit:         5,
		InsightMinScore:      0.3,
		MemoLimit:            3,
		MemoMinScore:         0.4,
		ConversationLimit:    3,
		ConversationMinScore: 0.4,
	}
}

// ContextHydrator assembles retrieval context for a chat
type ContextHydrator struct {
	storage  *storage.Storage
	embedder Embedder
	opts     ContextOptions
}

// NewContextHydrator creates a new ContextHydrator
func NewContextHydrator(store *storage.Storage, embedder Embedder, opts ContextOptions) *ContextHydrator {
	return &ContextHydrator{
		storage:  store,
		embedder: embedder,
		opts:     opts,
	}
}

// Hydrate returns the rendered context for query, or "" when nothing passes
// the score floors. Any embedding or search failure is returned.
func (ch *ContextHydrator) Hydrate(ctx context.Context, chatID int64, query string) (string, error) {
	vector, err := ch.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to embed query: %w", err)
	}

	var (
		insights      []storage.Match[models.Insight]
		memos         []storage.Match[models.Memo]
		conversations []storage.Match[models.ConversationTurn]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		insights, err = ch.storage.SearchInsights(gctx, vector, ch.opts.InsightLimit)
		return err
	})
	g.Go(func() error {
		var err error
		memos, err = ch.storage.SearchMemos(gctx, vector, chatID, ch.opts.MemoLimit)
		return err
	})
	g.Go(func() error {
		var err error
		conversations, err = ch.storage.SearchConversations(gctx, vector, chatID, ch.opts.ConversationLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	return ch.render(insights, memos, conversations), nil
}

func (ch *ContextHydrator) render(
	insights []storage.Match[models.Insight],
	memos []storage.Match[models.Memo],
	conversations []storage.Match[models.ConversationTurn],
) string {
	var lines []string

	var insightLines []string
	for _, m := range insights {
		if m.Score > ch.opts.InsightMinScore {
			insightLines = append(insightLines, "- "+m.Item.Content)
		}
	}
	if len(insightLines) > 0 {
		lines = append(lines, InsightsHeader)
		lines = append(lines, insightLines...)
	}

	var memoLines []string
	for _, m := range memos {
		if m.Score > ch.opts.MemoMinScore {
			memoLines = append(memoLines, "- "+m.Item.Content)
		}
	}
	if len(memoLines) > 0 {
		lines = append(lines, MemosHeader)
		lines = append(lines, memoLines...)
	}

	var convoLines []string
	for _, m := range conversations {
		if m.Score > ch.opts.ConversationMinScore {
			convoLines = append(convoLines, fmt.Sprintf("- User: \"%s\" → Assistant: \"%s\"", m.Item.UserText, m.Item.AssistantText))
		}
	}
	if len(convoLines) > 0 {
		lines = append(lines, ConversationsHeader)
		lines = append(lines, convoLines...)
	}

	return strings.Join(lines, "\n")
}
