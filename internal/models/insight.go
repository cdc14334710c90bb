// ABOUTME: Insight is a durable fact about the user mined from conversation by the extractor
// ABOUTME: Insights are global across chats and are created once, never updated
package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InsightCategory classifies what kind of fact an insight records
type InsightCategory string

const (
	InsightPreference   InsightCategory = "preference"
	InsightHabit        InsightCategory = "habit"
	InsightFact         InsightCategory = "fact"
	InsightRelationship InsightCategory = "relationship"
)

// ParseInsightCategory maps free text onto a known category, defaulting to fact.
func ParseInsightCategory(s string) InsightCategory {
	switch c := InsightCategory(strings.ToLower(strings.TrimSpace(s))); c {
	case InsightPreference, InsightHabit, InsightFact, InsightRelationship:
		return c
	default:
		return InsightFact
	}
}

// Insight represents an extracted fact about the user
type Insight struct {
	ID         string          `json:"id"`
	Content    string          `json:"content"`
	Category   InsightCategory `json:"category"`
	Confidence float64         `json:"confidence"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewInsight creates a new Insight with validation
func NewInsight(content string, category InsightCategory, confidence float64) (*Insight, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("insight content cannot be empty")
	}
	if confidence < 0 || confidence > 1 {
		return nil, errors.New("confidence must be between 0 and 1")
	}
	return &Insight{
		ID:         uuid.NewString(),
		Content:    content,
		Category:   ParseInsightCategory(string(category)),
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
	}, nil
}
