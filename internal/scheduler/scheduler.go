// ABOUTME: Scheduler persists alarms and daily briefings and keeps an in-process timer for each
// ABOUTME: Timers are rebuilt from storage at startup; delivery goes through an injected callback
package scheduler

import (
	"context"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/storage"
)

// DeliverFunc sends text to a chat.
type DeliverFunc func(ctx context.Context, chatID int64, text string) error

// SummaryFunc produces the briefing text for a chat.
type SummaryFunc func(ctx context.Context, chatID int64) (string, error)

const defaultFireTimeout = 3 * time.Minute

// Options configures a Scheduler
type Options struct {
	// Location is the zone for briefings and for fire times given without an offset
	Location *time.Location
	Clock    Clock
	// FireTimeout bounds the work done by one firing, including the summary call
	FireTimeout time.Duration
}

type Scheduler struct {
	storage  *storage.Storage
	deliver  DeliverFunc
	summary  SummaryFunc
	registry *Registry
	clock    Clock
	loc      *time.Location
	timeout  time.Duration
	log      *logger.Logger
}

func New(store *storage.Storage, deliver DeliverFunc, summary SummaryFunc, log *logger.Logger, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.FireTimeout <= 0 {
		opts.FireTimeout = defaultFireTimeout
	}
	log = log.With("component", "scheduler")
	return &Scheduler{
		storage:  store,
		deliver:  deliver,
		summary:  summary,
		registry: NewRegistry(opts.Clock, log),
		clock:    opts.Clock,
		loc:      opts.Location,
		timeout:  opts.FireTimeout,
		log:      log,
	}
}

// Location is the zone briefings run in.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Pending returns the names of the armed timers.
func (s *Scheduler) Pending() []string {
	return s.registry.Names()
}

// Stop cancels every timer.
func (s *Scheduler) Stop() {
	n := s.registry.Len()
	s.registry.Stop()
	s.log.Info("Scheduler stopped", "cancelled", n)
}

// fireContext is detached from any request; firings start from a timer.
func (s *Scheduler) fireContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}
