// ABOUTME: Briefing persistence, one point per chat holding its daily HH:MM
// ABOUTME: Stopping a briefing keeps the record and clears active
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/models"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore"
)

// SaveBriefing upserts the chat's briefing with active=true.
func (s *Storage) SaveBriefing(ctx context.Context, chatID int64, timeOfDay string) error {
	point := vectorstore.Point{
		ID:     BriefingPointID(chatID),
		Vector: dummyVector,
		Payload: map[string]any{
			"chat_id":    chatID,
			"time":       timeOfDay,
			"active":     true,
			"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	if err := s.store.Upsert(ctx, s.collection(CollectionBriefings), point); err != nil {
		return fmt.Errorf("failed to save briefing for chat %d: %w", chatID, err)
	}
	return nil
}

// LoadBriefing returns nil when the chat never configured a briefing.
func (s *Storage) LoadBriefing(ctx context.Context, chatID int64) (*models.Briefing, error) {
	p, err := s.store.Get(ctx, s.collection(CollectionBriefings), BriefingPointID(chatID))
	if err != nil {
		return nil, fmt.Errorf("failed to load briefing for chat %d: %w", chatID, err)
	}
	if p == nil {
		return nil, nil
	}
	return s.decodeBriefing(p.Payload)
}

func (s *Storage) DeactivateBriefing(ctx context.Context, chatID int64) error {
	err := s.store.SetPayload(ctx, s.collection(CollectionBriefings), BriefingPointID(chatID), map[string]any{
		"active":     false,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to deactivate briefing for chat %d: %w", chatID, err)
	}
	return nil
}

func (s *Storage) LoadActiveBriefings(ctx context.Context) ([]models.Briefing, error) {
	points, err := s.store.Scroll(ctx, s.collection(CollectionBriefings), vectorstore.Match("active", true))
	if err != nil {
		return nil, fmt.Errorf("failed to load briefings: %w", err)
	}

	out := make([]models.Briefing, 0, len(points))
	for _, p := range points {
		b, err := s.decodeBriefing(p.Payload)
		if err != nil {
			s.log.Warn("Skipping undecodable briefing", "id", p.ID, "error", err)
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (s *Storage) decodeBriefing(payload map[string]any) (*models.Briefing, error) {
	chatID, err := payloadInt64(payload, "chat_id")
	if err != nil {
		return nil, err
	}
	active, _ := payload["active"].(bool)
	b := &models.Briefing{
		ChatID:    chatID,
		TimeOfDay: payloadString(payload, "time"),
		Active:    active,
	}
	if ts := payloadString(payload, "updated_at"); ts != "" {
		if t, err := s.parseTimestamp(ts); err == nil {
			b.UpdatedAt = t
		}
	}
	return b, nil
}
