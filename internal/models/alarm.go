// ABOUTME: Alarm is a persisted reminder that fires once or on a daily/weekly recurrence
// ABOUTME: One-shot alarms are deactivated after they fire; recurring ones stay active
package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Repeat string

const (
	RepeatNone   Repeat = ""
	RepeatDaily  Repeat = "daily"
	RepeatWeekly Repeat = "weekly"
)

// ParseRepeat maps anything other than daily or weekly to RepeatNone.
func ParseRepeat(s string) Repeat {
	switch r := Repeat(strings.ToLower(strings.TrimSpace(s))); r {
	case RepeatDaily, RepeatWeekly:
		return r
	default:
		return RepeatNone
	}
}

func (r Repeat) Recurring() bool {
	return r == RepeatDaily || r == RepeatWeekly
}

type Alarm struct {
	ID      string    `json:"alarm_id"`
	ChatID  int64     `json:"chat_id"`
	Message string    `json:"message"`
	FireAt  time.Time `json:"fire_at"`
	Repeat  Repeat    `json:"repeat"`
	Active  bool      `json:"active"`
}

// NewAlarm creates an active alarm with a fresh identifier
func NewAlarm(chatID int64, message string, fireAt time.Time, repeat Repeat) (*Alarm, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errors.New("alarm message cannot be empty")
	}
	if fireAt.IsZero() {
		return nil, errors.New("alarm fire time is required")
	}
	return &Alarm{
		ID:      uuid.NewString(),
		ChatID:  chatID,
		Message: message,
		FireAt:  fireAt,
		Repeat:  ParseRepeat(string(repeat)),
		Active:  true,
	}, nil
}
