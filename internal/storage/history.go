// ABOUTME: History snapshot persistence, one overwritable point per chat
// ABOUTME: The message log is kept as an opaque JSON string under messages_json
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/models"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore"
)

// SaveHistorySnapshot overwrites the chat's snapshot with messages.
func (s *Storage) SaveHistorySnapshot(ctx context.Context, chatID int64, messages json.RawMessage) error {
	point := vectorstore.Point{
		ID:     HistoryPointID(chatID),
		Vector: dummyVector,
		Payload: map[string]any{
			"chat_id":       chatID,
			"messages_json": string(messages),
			"timestamp":     time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	if err := s.store.Upsert(ctx, s.collection(CollectionHistory), point); err != nil {
		return fmt.Errorf("failed to save history snapshot for chat %d: %w", chatID, err)
	}
	return nil
}

// LoadHistorySnapshot returns nil when the chat has no snapshot.
func (s *Storage) LoadHistorySnapshot(ctx context.Context, chatID int64) (*models.HistorySnapshot, error) {
	p, err := s.store.Get(ctx, s.collection(CollectionHistory), HistoryPointID(chatID))
	if err != nil {
		return nil, fmt.Errorf("failed to load history snapshot for chat %d: %w", chatID, err)
	}
	if p == nil {
		return nil, nil
	}
	return s.decodeSnapshot(p.Payload)
}

// LoadAllHistorySnapshots returns every snapshot. Records that cannot be
// decoded are skipped.
func (s *Storage) LoadAllHistorySnapshots(ctx context.Context) ([]models.HistorySnapshot, error) {
	points, err := s.store.Scroll(ctx, s.collection(CollectionHistory), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load history snapshots: %w", err)
	}

	out := make([]models.HistorySnapshot, 0, len(points))
	for _, p := range points {
		snap, err := s.decodeSnapshot(p.Payload)
		if err != nil {
			s.log.Warn("Skipping undecodable history snapshot", "id", p.ID, "error", err)
			continue
		}
		out = append(out, *snap)
	}
	return out, nil
}

func (s *Storage) decodeSnapshot(payload map[string]any) (*models.HistorySnapshot, error) {
	chatID, err := payloadInt64(payload, "chat_id")
	if err != nil {
		return nil, err
	}
	snap := &models.HistorySnapshot{ChatID: chatID}

	switch v := payload["messages_json"].(type) {
	case string:
		snap.Messages = json.RawMessage(v)
	case nil:
		return nil, fmt.Errorf("missing messages_json")
	default:
		// Structured payloads written by other tools
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode messages_json: %w", err)
		}
		snap.Messages = raw
	}

	if ts := payloadString(payload, "timestamp"); ts != "" {
		if t, err := s.parseTimestamp(ts); err == nil {
			snap.Timestamp = t
		}
	}
	return snap, nil
}
