// ABOUTME: Next-occurrence math for daily and weekly schedules using cron specs
// ABOUTME: Also parses user-supplied fire times, with or without a UTC offset
package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron"

	"github.com/jerryymjo/jarvis-memory/internal/models"
)

// ErrInvalidFireAt is returned by ParseFireAt for unrecognized input
var ErrInvalidFireAt = errors.New("fire time must be ISO-8601, e.g. 2026-03-06T08:00:00+09:00")

// recurrence returns the cron schedule that repeats anchor's wall-clock time.
// Weekly schedules also pin the weekday.
func recurrence(repeat models.Repeat, anchor time.Time) (cron.Schedule, error) {
	var spec string
	switch repeat {
	case models.RepeatDaily:
		spec = fmt.Sprintf("%d %d %d * * *", anchor.Second(), anchor.Minute(), anchor.Hour())
	case models.RepeatWeekly:
		spec = fmt.Sprintf("%d %d %d * * %d", anchor.Second(), anchor.Minute(), anchor.Hour(), int(anchor.Weekday()))
	default:
		return nil, fmt.Errorf("repeat %q is not recurring", repeat)
	}
	return cron.Parse(spec)
}

// dailyAt returns the schedule firing every day at hour:minute.
func dailyAt(hour, minute int) (cron.Schedule, error) {
	return cron.Parse(fmt.Sprintf("0 %d %d * * *", minute, hour))
}

// nextAfter evaluates sched in loc, strictly after now.
func nextAfter(sched cron.Schedule, now time.Time, loc *time.Location) time.Time {
	return sched.Next(now.In(loc))
}

var (
	offsetLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04Z07:00",
		"2006-01-02 15:04:05Z07:00",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
)

// ParseFireAt parses an ISO-8601 time. Times without an offset are taken in loc.
func ParseFireAt(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: got %q", ErrInvalidFireAt, s)
}
