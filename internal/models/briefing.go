// ABOUTME: Briefing is a chat's daily summary schedule at a fixed HH:MM
// ABOUTME: At most one briefing exists per chat; stopping it only flips active
package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var timeOfDayPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// ErrInvalidTimeOfDay is returned for anything that is not a valid HH:MM
var ErrInvalidTimeOfDay = errors.New("time must be HH:MM")

type Briefing struct {
	ChatID    int64     `json:"chat_id"`
	TimeOfDay string    `json:"time"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParseTimeOfDay validates "HH:MM" and returns hour and minute.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	if !timeOfDayPattern.MatchString(s) {
		return 0, 0, fmt.Errorf("%w: got %q", ErrInvalidTimeOfDay, s)
	}
	hour, _ = strconv.Atoi(s[:2])
	minute, _ = strconv.Atoi(s[3:])
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q is out of range", ErrInvalidTimeOfDay, s)
	}
	return hour, minute, nil
}
