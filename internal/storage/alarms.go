// ABOUTME: Alarm persistence keyed by a deterministic point per alarm
// ABOUTME: Deactivation flips the active flag in place; alarms are never deleted
package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/models"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore"
)

// SaveAlarm writes the alarm with active=true.
func (s *Storage) SaveAlarm(ctx context.Context, alarm *models.Alarm) error {
	alarm.Active = true
	point := vectorstore.Point{
		ID:     AlarmPointID(alarm.ID),
		Vector: dummyVector,
		Payload: map[string]any{
			"alarm_id": alarm.ID,
			"chat_id":  alarm.ChatID,
			"message":  alarm.Message,
			"fire_at":  alarm.FireAt.Format(time.RFC3339Nano),
			"repeat":   string(alarm.Repeat),
			"active":   true,
		},
	}
	if err := s.store.Upsert(ctx, s.collection(CollectionAlarms), point); err != nil {
		return fmt.Errorf("failed to save alarm %s: %w", alarm.ID, err)
	}
	return nil
}

func (s *Storage) DeactivateAlarm(ctx context.Context, alarmID string) error {
	err := s.store.SetPayload(ctx, s.collection(CollectionAlarms), AlarmPointID(alarmID), map[string]any{"active": false})
	if err != nil {
		return fmt.Errorf("failed to deactivate alarm %s: %w", alarmID, err)
	}
	return nil
}

// LoadActiveAlarms returns every active alarm across chats.
func (s *Storage) LoadActiveAlarms(ctx context.Context) ([]models.Alarm, error) {
	return s.scrollAlarms(ctx, vectorstore.Match("active", true))
}

// ListAlarms returns a chat's active alarms ordered by fire time.
func (s *Storage) ListAlarms(ctx context.Context, chatID int64) ([]models.Alarm, error) {
	alarms, err := s.scrollAlarms(ctx, vectorstore.Match("chat_id", chatID).And("active", true))
	if err != nil {
		return nil, err
	}
	sort.Slice(alarms, func(i, j int) bool {
		return alarms[i].FireAt.Before(alarms[j].FireAt)
	})
	return alarms, nil
}

func (s *Storage) scrollAlarms(ctx context.Context, filter *vectorstore.Filter) ([]models.Alarm, error) {
	points, err := s.store.Scroll(ctx, s.collection(CollectionAlarms), filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load alarms: %w", err)
	}

	out := make([]models.Alarm, 0, len(points))
	for _, p := range points {
		alarm, err := s.decodeAlarm(p.Payload)
		if err != nil {
			s.log.Warn("Skipping undecodable alarm", "id", p.ID, "error", err)
			continue
		}
		out = append(out, *alarm)
	}
	return out, nil
}

func (s *Storage) decodeAlarm(payload map[string]any) (*models.Alarm, error) {
	alarmID := payloadString(payload, "alarm_id")
	if alarmID == "" {
		return nil, fmt.Errorf("missing alarm_id")
	}
	chatID, err := payloadInt64(payload, "chat_id")
	if err != nil {
		return nil, err
	}
	fireAt, err := s.parseTimestamp(payloadString(payload, "fire_at"))
	if err != nil {
		return nil, fmt.Errorf("alarm %s: %w", alarmID, err)
	}
	active, _ := payload["active"].(bool)

	return &models.Alarm{
		ID:      alarmID,
		ChatID:  chatID,
		Message: payloadString(payload, "message"),
		FireAt:  fireAt,
		Repeat:  models.ParseRepeat(payloadString(payload, "repeat")),
		Active:  active,
	}, nil
}
