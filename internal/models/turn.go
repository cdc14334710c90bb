// ABOUTME: ConversationTurn represents a single completed exchange between the user and the assistant
// ABOUTME: Turns are embedded once, stored immutably, and retrieved by similarity within a chat
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConversationTurn represents a single conversation turn
type ConversationTurn struct {
	ID            string    `json:"id"`
	ChatID        int64     `json:"chat_id"`
	UserText      string    `json:"user_text"`
	AssistantText string    `json:"assistant_text"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewConversationTurn creates a new ConversationTurn with validation
func NewConversationTurn(chatID int64, userText, assistantText string) (*ConversationTurn, error) {
	if strings.TrimSpace(userText) == "" && strings.TrimSpace(assistantText) == "" {
		return nil, errors.New("turn must have user or assistant text")
	}
	return &ConversationTurn{
		ID:            uuid.NewString(),
		ChatID:        chatID,
		UserText:      userText,
		AssistantText: assistantText,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// EmbeddingText is the text whose embedding indexes the turn.
func (t *ConversationTurn) EmbeddingText() string {
	return TurnEmbeddingText(t.UserText, t.AssistantText)
}

func TurnEmbeddingText(userText, assistantText string) string {
	return fmt.Sprintf("User: %s\nAssistant: %s", userText, assistantText)
}
