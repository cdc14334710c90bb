// ABOUTME: InsightExtractor asks the LLM for durable facts about the user and stores the new ones
// ABOUTME: Low-confidence items are dropped and near-duplicates of existing insights are skipped
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jerryymjo/jarvis-memory/internal/llm"
	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/models"
	"github.com/jerryymjo/jarvis-memory/internal/storage"
)

const extractionPrompt = `Extract new insights about the user from the conversation below.
Categories: preference, habit, fact, relationship

Conversation:
User: %s
Assistant: %s

Respond with a JSON array. If there are no insights, respond with [].
Each item: {"content": "insight text", "category": "category", "confidence": 0.0-1.0}
/no_think`

const (
	extractionTemperature = 0.1
	extractionMaxTokens   = 512
	defaultConfidence     = 0.5
)

// ExtractorConfig holds the extraction thresholds
type ExtractorConfig struct {
	MinConfidence  float64
	DuplicateScore float64
}

func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{MinConfidence: 0.3, DuplicateScore: 0.85}
}

// ExtractionSummary counts what happened to each candidate insight
type ExtractionSummary struct {
	Candidates    int
	Saved         int
	LowConfidence int
	Duplicates    int
	Failed        int
}

// InsightExtractor mines insights from conversation turns
type InsightExtractor struct {
	llm      llm.Completer
	embedder Embedder
	storage  *storage.Storage
	log      *logger.Logger
	cfg      ExtractorConfig
}

// NewInsightExtractor creates a new InsightExtractor
func NewInsightExtractor(completer llm.Completer, embedder Embedder, store *storage.Storage, log *logger.Logger, cfg ExtractorConfig) *InsightExtractor {
	return &InsightExtractor{
		llm:      completer,
		embedder: embedder,
		storage:  store,
		log:      log.With("component", "insight_extractor"),
		cfg:      cfg,
	}
}

// MaybeExtractInsights runs one extraction pass. Failures are logged, never returned.
func (e *InsightExtractor) MaybeExtractInsights(ctx context.Context, chatID int64, userText, assistantText string) ExtractionSummary {
	var summary ExtractionSummary

	content, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Prompt:      fmt.Sprintf(extractionPrompt, userText, assistantText),
		Temperature: extractionTemperature,
		MaxTokens:   extractionMaxTokens,
	})
	if err != nil {
		e.log.Error("Insight extraction failed", "chat_id", chatID, "error", err)
		return summary
	}

	candidates, err := parseInsights(content)
	if err != nil {
		e.log.Error("Insight extraction returned unparseable output", "chat_id", chatID, "error", err)
		return summary
	}
	summary.Candidates = len(candidates)

	for _, c := range candidates {
		if c.Confidence < e.cfg.MinConfidence {
			summary.LowConfidence++
			continue
		}

		vector, err := e.embedder.Embed(ctx, c.Content)
		if err != nil {
			e.log.Error("Failed to embed insight", "error", err)
			summary.Failed++
			continue
		}

		// Check-then-act without locking; a concurrent duplicate can slip through.
		existing, err := e.storage.SearchInsights(ctx, vector, 1)
		if err != nil {
			e.log.Error("Failed to check for duplicate insight", "error", err)
			summary.Failed++
			continue
		}
		if len(existing) > 0 && existing[0].Score > e.cfg.DuplicateScore {
			e.log.Debug("Skipping duplicate insight", "content", c.Content, "score", existing[0].Score)
			summary.Duplicates++
			continue
		}

		insight, err := models.NewInsight(c.Content, c.Category, c.Confidence)
		if err != nil {
			summary.Failed++
			continue
		}
		if _, err := e.storage.UpsertInsight(ctx, insight, vector); err != nil {
			e.log.Error("Failed to save insight", "error", err)
			summary.Failed++
			continue
		}
		summary.Saved++
		e.log.Info("Extracted insight", "category", insight.Category, "content", insight.Content, "confidence", insight.Confidence)
	}

	e.log.Info("Insight extraction finished",
		"chat_id", chatID,
		"candidates", summary.Candidates,
		"saved", summary.Saved,
		"duplicates", summary.Duplicates,
		"low_confidence", summary.LowConfidence,
		"failed", summary.Failed)
	return summary
}

type insightCandidate struct {
	Content    string
	Category   models.InsightCategory
	Confidence float64
}

// parseInsights decodes the model's JSON array. Items that are not objects or
// lack content are skipped; a non-array response yields no candidates.
func parseInsights(raw string) ([]insightCandidate, error) {
	cleaned := stripCodeFence(StripThink(raw))
	if cleaned == "" {
		return nil, nil
	}

	var top any
	if err := json.Unmarshal([]byte(cleaned), &top); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	items, ok := top.([]any)
	if !ok {
		return nil, nil
	}

	var out []insightCandidate
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		content, ok := obj["content"].(string)
		if !ok || strings.TrimSpace(content) == "" {
			continue
		}
		category, _ := obj["category"].(string)
		out = append(out, insightCandidate{
			Content:    content,
			Category:   models.ParseInsightCategory(category),
			Confidence: parseConfidence(obj["confidence"]),
		})
	}
	return out, nil
}

func parseConfidence(v any) float64 {
	var c float64
	switch t := v.(type) {
	case float64:
		c = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return defaultConfidence
		}
		c = parsed
	default:
		return defaultConfidence
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
