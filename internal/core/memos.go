// ABOUTME: MemoService saves, searches, lists, and deletes the memos a user explicitly asks to keep
// ABOUTME: Deletion picks the single best semantic match above a score floor
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/models"
	"github.com/jerryymjo/jarvis-memory/internal/storage"
)

// ErrNoMatchingMemo is returned when no memo is similar enough to delete
var ErrNoMatchingMemo = errors.New("no matching memo")

const (
	DefaultMemoSearchLimit = 5
	memoSearchMinScore     = 0.3
	memoDeleteMinScore     = 0.3
)

type MemoService struct {
	storage  *storage.Storage
	embedder Embedder
	log      *logger.Logger
}

func NewMemoService(store *storage.Storage, embedder Embedder, log *logger.Logger) *MemoService {
	return &MemoService{
		storage:  store,
		embedder: embedder,
		log:      log.With("component", "memos"),
	}
}

// SaveMemo stores content for the chat. Unknown categories become memo.
func (s *MemoService) SaveMemo(ctx context.Context, chatID int64, content, category string) (*models.Memo, error) {
	memo, err := models.NewMemo(chatID, content, models.ParseMemoCategory(category))
	if err != nil {
		return nil, err
	}
	vector, err := s.embedder.Embed(ctx, memo.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to embed memo: %w", err)
	}
	if _, err := s.storage.SaveMemo(ctx, memo, vector); err != nil {
		return nil, err
	}
	s.log.Info("Saved memo", "memo_id", memo.ID, "chat_id", chatID, "category", memo.Category)
	return memo, nil
}

// SearchMemos returns the chat's memos scoring above the search floor.
func (s *MemoService) SearchMemos(ctx context.Context, chatID int64, query string, limit int) ([]storage.Match[models.Memo], error) {
	if limit <= 0 {
		limit = DefaultMemoSearchLimit
	}
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := s.storage.SearchMemos(ctx, vector, chatID, limit)
	if err != nil {
		return nil, err
	}

	out := hits[:0]
	for _, h := range hits {
		if h.Score > memoSearchMinScore {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *MemoService) ListMemos(ctx context.Context, chatID int64) ([]models.Memo, error) {
	return s.storage.ListMemos(ctx, chatID)
}

// DeleteMemo removes the memo that best matches query.
func (s *MemoService) DeleteMemo(ctx context.Context, chatID int64, query string) (*models.Memo, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := s.storage.SearchMemos(ctx, vector, chatID, 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 || hits[0].Score < memoDeleteMinScore {
		return nil, ErrNoMatchingMemo
	}

	target := hits[0].Item
	if err := s.storage.DeleteMemo(ctx, target.ID); err != nil {
		return nil, err
	}
	s.log.Info("Deleted memo", "memo_id", target.ID, "chat_id", chatID)
	return &target, nil
}
