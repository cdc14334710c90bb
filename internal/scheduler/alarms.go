// ABOUTME: Alarm creation, firing, and restore
// ABOUTME: One-shot alarms deactivate after delivery; daily and weekly ones re-arm in their own zone
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/models"
)

// ErrFireTimeInPast is returned when a one-shot alarm would never fire
var ErrFireTimeInPast = errors.New("alarm time is in the past")

const reminderPrefix = "⏰ Reminder: "

func alarmTimerName(alarmID string) string {
	return "alarm-" + alarmID
}

// CreateAlarm persists an active alarm and arms its timer.
func (s *Scheduler) CreateAlarm(ctx context.Context, chatID int64, message string, fireAt time.Time, repeat models.Repeat) (*models.Alarm, error) {
	alarm, err := models.NewAlarm(chatID, message, fireAt, repeat)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if !alarm.Repeat.Recurring() && !alarm.FireAt.After(now) {
		return nil, fmt.Errorf("%w: %s", ErrFireTimeInPast, alarm.FireAt.Format(time.RFC3339))
	}

	if err := s.storage.SaveAlarm(ctx, alarm); err != nil {
		return nil, err
	}
	if err := s.scheduleAlarm(*alarm, now); err != nil {
		return nil, err
	}
	s.log.Info("Alarm set", "alarm_id", alarm.ID, "chat_id", chatID, "fire_at", alarm.FireAt, "repeat", alarm.Repeat)
	return alarm, nil
}

// ListAlarms returns the chat's active alarms.
func (s *Scheduler) ListAlarms(ctx context.Context, chatID int64) ([]models.Alarm, error) {
	return s.storage.ListAlarms(ctx, chatID)
}

// scheduleAlarm arms the alarm relative to now. A recurring alarm whose
// anchor already passed starts at its next occurrence.
func (s *Scheduler) scheduleAlarm(alarm models.Alarm, now time.Time) error {
	name := alarmTimerName(alarm.ID)

	if !alarm.Repeat.Recurring() {
		if !alarm.FireAt.After(now) {
			return ErrFireTimeInPast
		}
		s.registry.Schedule(name, alarm.FireAt, func() time.Time {
			s.fireAlarm(alarm)
			return time.Time{}
		})
		return nil
	}

	sched, err := recurrence(alarm.Repeat, alarm.FireAt)
	if err != nil {
		return fmt.Errorf("alarm %s: %w", alarm.ID, err)
	}
	loc := alarm.FireAt.Location()
	first := alarm.FireAt
	if !first.After(now) {
		first = nextAfter(sched, now, loc)
	}
	s.registry.Schedule(name, first, func() time.Time {
		s.fireAlarm(alarm)
		return nextAfter(sched, s.clock.Now(), loc)
	})
	return nil
}

func (s *Scheduler) fireAlarm(alarm models.Alarm) {
	ctx, cancel := s.fireContext()
	defer cancel()

	if err := s.deliver(ctx, alarm.ChatID, reminderPrefix+alarm.Message); err != nil {
		s.log.Error("Failed to deliver alarm", "alarm_id", alarm.ID, "chat_id", alarm.ChatID, "error", err)
		return
	}
	s.log.Info("Alarm fired", "alarm_id", alarm.ID, "chat_id", alarm.ChatID)

	if alarm.Repeat.Recurring() {
		return
	}
	if err := s.storage.DeactivateAlarm(ctx, alarm.ID); err != nil {
		s.log.Error("Failed to deactivate fired alarm", "alarm_id", alarm.ID, "error", err)
	}
}

// RestoreAlarms arms a timer for every active alarm and deactivates
// one-shot alarms whose time has passed. It returns the number armed.
func (s *Scheduler) RestoreAlarms(ctx context.Context) int {
	alarms, err := s.storage.LoadActiveAlarms(ctx)
	if err != nil {
		s.log.Error("Failed to restore alarms", "error", err)
		return 0
	}

	now := s.clock.Now()
	restored := 0
	for _, alarm := range alarms {
		err := s.scheduleAlarm(alarm, now)
		switch {
		case errors.Is(err, ErrFireTimeInPast):
			if err := s.storage.DeactivateAlarm(ctx, alarm.ID); err != nil {
				s.log.Warn("Failed to deactivate past alarm", "alarm_id", alarm.ID, "error", err)
				continue
			}
			s.log.Info("Deactivated past alarm", "alarm_id", alarm.ID, "fire_at", alarm.FireAt)
		case err != nil:
			s.log.Warn("Skipping alarm", "alarm_id", alarm.ID, "error", err)
		default:
			restored++
		}
	}

	s.log.Info("Alarms restored", "count", restored)
	return restored
}
