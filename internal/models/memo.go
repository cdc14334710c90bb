// ABOUTME: Memo is a note, bookmark, or memo the user explicitly asked to keep
// ABOUTME: Memos belong to a single chat and are created and deleted on request
package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type MemoCategory string

const (
	MemoCategoryMemo     MemoCategory = "memo"
	MemoCategoryBookmark MemoCategory = "bookmark"
	MemoCategoryNote     MemoCategory = "note"
)

// ParseMemoCategory defaults anything unknown to memo.
func ParseMemoCategory(s string) MemoCategory {
	switch c := MemoCategory(strings.ToLower(strings.TrimSpace(s))); c {
	case MemoCategoryMemo, MemoCategoryBookmark, MemoCategoryNote:
		return c
	default:
		return MemoCategoryMemo
	}
}

type Memo struct {
	ID        string       `json:"memo_id"`
	ChatID    int64        `json:"chat_id"`
	Content   string       `json:"content"`
	Category  MemoCategory `json:"category"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewMemo creates a new Memo with validation
func NewMemo(chatID int64, content string, category MemoCategory) (*Memo, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("memo content cannot be empty")
	}
	return &Memo{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Content:   content,
		Category:  ParseMemoCategory(string(category)),
		Timestamp: time.Now().UTC(),
	}, nil
}

// ShortID is the prefix shown to users when listing memos.
func (m *Memo) ShortID() string {
	if len(m.ID) > 8 {
		return m.ID[:8]
	}
	return m.ID
}
