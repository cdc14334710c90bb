// ABOUTME: Daily briefing scheduling, one timer per chat
// ABOUTME: A briefing always re-arms for the next day, even when generation or delivery fails
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/models"
)

// ErrInvalidTime is returned for a briefing time that is not a valid HH:MM
var ErrInvalidTime = models.ErrInvalidTimeOfDay

// BriefingErrorMessage is delivered when a briefing could not be produced
const BriefingErrorMessage = "An error occurred while generating the briefing."

func briefingTimerName(chatID int64) string {
	return fmt.Sprintf("briefing-%d", chatID)
}

// CreateBriefing stores the chat's daily briefing time and arms it, replacing
// any earlier schedule for the chat.
func (s *Scheduler) CreateBriefing(ctx context.Context, chatID int64, timeOfDay string) error {
	hour, minute, err := models.ParseTimeOfDay(timeOfDay)
	if err != nil {
		return err
	}
	if err := s.storage.SaveBriefing(ctx, chatID, timeOfDay); err != nil {
		return err
	}
	if err := s.scheduleBriefing(chatID, hour, minute); err != nil {
		return err
	}
	s.log.Info("Briefing set", "chat_id", chatID, "time", timeOfDay)
	return nil
}

// LoadBriefing returns the chat's briefing, or nil if none was ever set.
func (s *Scheduler) LoadBriefing(ctx context.Context, chatID int64) (*models.Briefing, error) {
	return s.storage.LoadBriefing(ctx, chatID)
}

func (s *Scheduler) scheduleBriefing(chatID int64, hour, minute int) error {
	sched, err := dailyAt(hour, minute)
	if err != nil {
		return fmt.Errorf("briefing for chat %d: %w", chatID, err)
	}
	next := func() time.Time { return nextAfter(sched, s.clock.Now(), s.loc) }

	s.registry.Schedule(briefingTimerName(chatID), next(), func() time.Time {
		s.fireBriefing(chatID)
		return next()
	})
	return nil
}

func (s *Scheduler) fireBriefing(chatID int64) {
	ctx, cancel := s.fireContext()
	defer cancel()

	text, err := s.summary(ctx, chatID)
	if err != nil {
		s.log.Error("Failed to generate briefing", "chat_id", chatID, "error", err)
		text = BriefingErrorMessage
	}

	if err := s.deliver(ctx, chatID, text); err != nil {
		s.log.Error("Failed to deliver briefing", "chat_id", chatID, "error", err)
		if text == BriefingErrorMessage {
			return
		}
		if err := s.deliver(ctx, chatID, BriefingErrorMessage); err != nil {
			s.log.Error("Failed to deliver briefing error notice", "chat_id", chatID, "error", err)
		}
		return
	}
	s.log.Info("Briefing delivered", "chat_id", chatID)
}

// StopBriefing deactivates the chat's briefing. It reports false when there
// was no active briefing to stop.
func (s *Scheduler) StopBriefing(ctx context.Context, chatID int64) (bool, error) {
	b, err := s.storage.LoadBriefing(ctx, chatID)
	if err != nil {
		return false, err
	}
	if b == nil || !b.Active {
		s.registry.Cancel(briefingTimerName(chatID))
		return false, nil
	}
	if err := s.storage.DeactivateBriefing(ctx, chatID); err != nil {
		return false, err
	}
	s.registry.Cancel(briefingTimerName(chatID))
	s.log.Info("Briefing stopped", "chat_id", chatID)
	return true, nil
}

// RestoreBriefings arms every active briefing and returns how many were armed.
func (s *Scheduler) RestoreBriefings(ctx context.Context) int {
	briefings, err := s.storage.LoadActiveBriefings(ctx)
	if err != nil {
		s.log.Error("Failed to restore briefings", "error", err)
		return 0
	}

	restored := 0
	for _, b := range briefings {
		hour, minute, err := models.ParseTimeOfDay(b.TimeOfDay)
		if err != nil {
			s.log.Warn("Skipping briefing", "chat_id", b.ChatID, "error", err)
			continue
		}
		if err := s.scheduleBriefing(b.ChatID, hour, minute); err != nil {
			s.log.Warn("Skipping briefing", "chat_id", b.ChatID, "error", err)
			continue
		}
		restored++
	}

	s.log.Info("Briefings restored", "count", restored)
	return restored
}
