// ABOUTME: Memo persistence: save, semantic search, list, and delete within a chat
// ABOUTME: The memo ID doubles as the point ID
package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/jerryymjo/jarvis-memory/internal/models"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore"
)

func (s *Storage) SaveMemo(ctx context.Context, memo *models.Memo, vector []float32) (string, error) {
	if err := s.checkVector(vector); err != nil {
		return "", err
	}
	payload, err := toPayload(memo)
	if err != nil {
		return "", err
	}
	point := vectorstore.Point{ID: memo.ID, Vector: vector, Payload: payload}
	if err := s.store.Upsert(ctx, s.collection(CollectionMemos), point); err != nil {
		return "", fmt.Errorf("failed to save memo: %w", err)
	}
	return memo.ID, nil
}

func (s *Storage) SearchMemos(ctx context.Context, vector []float32, chatID int64, limit int) ([]Match[models.Memo], error) {
	hits, err := s.store.Search(ctx, s.collection(CollectionMemos), vector, vectorstore.Match("chat_id", chatID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search memos: %w", err)
	}

	out := make([]Match[models.Memo], 0, len(hits))
	for _, hit := range hits {
		memo, err := s.decodeMemo(hit.ID, hit.Payload)
		if err != nil {
			s.log.Warn("Skipping undecodable memo", "id", hit.ID, "error", err)
			continue
		}
		out = append(out, Match[models.Memo]{Item: *memo, Score: hit.Score})
	}
	return out, nil
}

// ListMemos returns every memo of a chat, oldest first.
func (s *Storage) ListMemos(ctx context.Context, chatID int64) ([]models.Memo, error) {
	points, err := s.store.Scroll(ctx, s.collection(CollectionMemos), vectorstore.Match("chat_id", chatID))
	if err != nil {
		return nil, fmt.Errorf("failed to list memos: %w", err)
	}

	memos := make([]models.Memo, 0, len(points))
	for _, p := range points {
		memo, err := s.decodeMemo(p.ID, p.Payload)
		if err != nil {
			s.log.Warn("Skipping undecodable memo", "id", p.ID, "error", err)
			continue
		}
		memos = append(memos, *memo)
	}
	sort.SliceStable(memos, func(i, j int) bool {
		return memos[i].Timestamp.Before(memos[j].Timestamp)
	})
	return memos, nil
}

func (s *Storage) DeleteMemo(ctx context.Context, memoID string) error {
	if err := s.store.Delete(ctx, s.collection(CollectionMemos), memoID); err != nil {
		return fmt.Errorf("failed to delete memo %s: %w", memoID, err)
	}
	return nil
}

func (s *Storage) decodeMemo(pointID string, payload map[string]any) (*models.Memo, error) {
	var memo models.Memo
	if err := fromPayload(payload, &memo); err != nil {
		return nil, err
	}
	if memo.ID == "" {
		memo.ID = pointID
	}
	memo.Category = models.ParseMemoCategory(string(memo.Category))
	return &memo, nil
}
