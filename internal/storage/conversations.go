// ABOUTME: Conversation turn and insight persistence with similarity search
// ABOUTME: Turns are scoped to a chat; insights are global
package storage

import (
	"context"
	"fmt"

	"github.com/jerryymjo/jarvis-memory/internal/models"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore"
)

// UpsertConversation stores a completed turn under its own ID.
func (s *Storage) UpsertConversation(ctx context.Context, turn *models.ConversationTurn, vector []float32) (string, error) {
	if err := s.checkVector(vector); err != nil {
		return "", err
	}
	payload, err := toPayload(turn)
	if err != nil {
		return "", err
	}
	delete(payload, "id")

	point := vectorstore.Point{ID: turn.ID, Vector: vector, Payload: payload}
	if err := s.store.Upsert(ctx, s.collection(CollectionConversations), point); err != nil {
		return "", fmt.Errorf("failed to upsert conversation: %w", err)
	}
	return turn.ID, nil
}

// SearchConversations returns the chat's turns most similar to vector.
func (s *Storage) SearchConversations(ctx context.Context, vector []float32, chatID int64, limit int) ([]Match[models.ConversationTurn], error) {
	hits, err := s.store.Search(ctx, s.collection(CollectionConversations), vector, vectorstore.Match("chat_id", chatID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search conversations: %w", err)
	}

	out := make([]Match[models.ConversationTurn], 0, len(hits))
	for _, hit := range hits {
		var turn models.ConversationTurn
		if err := fromPayload(hit.Payload, &turn); err != nil {
			s.log.Warn("Skipping undecodable conversation", "id", hit.ID, "error", err)
			continue
		}
		turn.ID = hit.ID
		out = append(out, Match[models.ConversationTurn]{Item: turn, Score: hit.Score})
	}
	return out, nil
}

// UpsertInsight stores an extracted insight.
func (s *Storage) UpsertInsight(ctx context.Context, insight *models.Insight, vector []float32) (string, error) {
	if err := s.checkVector(vector); err != nil {
		return "", err
	}
	payload, err := toPayload(insight)
	if err != nil {
		return "", err
	}
	delete(payload, "id")

	point := vectorstore.Point{ID: insight.ID, Vector: vector, Payload: payload}
	if err := s.store.Upsert(ctx, s.collection(CollectionMemories), point); err != nil {
		return "", fmt.Errorf("failed to upsert insight: %w", err)
	}
	return insight.ID, nil
}

// SearchInsights searches every insight regardless of chat.
func (s *Storage) SearchInsights(ctx context.Context, vector []float32, limit int) ([]Match[models.Insight], error) {
	hits, err := s.store.Search(ctx, s.collection(CollectionMemories), vector, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search insights: %w", err)
	}

	out := make([]Match[models.Insight], 0, len(hits))
	for _, hit := range hits {
		var insight models.Insight
		if err := fromPayload(hit.Payload, &insight); err != nil {
			s.log.Warn("Skipping undecodable insight", "id", hit.ID, "error", err)
			continue
		}
		insight.ID = hit.ID
		insight.Category = models.ParseInsightCategory(string(insight.Category))
		out = append(out, Match[models.Insight]{Item: insight, Score: hit.Score})
	}
	return out, nil
}
