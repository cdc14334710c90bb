// ABOUTME: Test fixtures for the scheduler: a manual clock and a delivery recorder
// ABOUTME: Advancing the clock runs due timers synchronously in fire-time order
package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/logger"
	"github.com/jerryymjo/jarvis-memory/internal/storage"
	"github.com/jerryymjo/jarvis-memory/internal/vectorstore/chromem"
)

var kst = time.FixedZone("KST", 9*60*60)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	when  time.Time
	f     func()
	done  bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, when: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves time forward by d, firing every timer that comes due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due *fakeTimer
		for _, t := range c.timers {
			if t.done || t.when.After(target) {
				continue
			}
			if due == nil || t.when.Before(due.when) {
				due = t
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		due.done = true
		if due.when.After(c.now) {
			c.now = due.when
		}
		c.mu.Unlock()
		due.f()
	}
}

type delivery struct {
	chatID int64
	text   string
	at     time.Time
}

type recorder struct {
	clock Clock

	mu   sync.Mutex
	got  []delivery
	fail error
}

func (r *recorder) deliver(_ context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.got = append(r.got, delivery{chatID: chatID, text: text, at: r.clock.Now()})
	return nil
}

func (r *recorder) deliveries() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.got...)
}

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s := storage.New(chromem.New(logger.Nop()), logger.Nop(), storage.Options{Dimension: 4, Location: kst})
	if _, err := s.EnsureCollections(context.Background()); err != nil {
		t.Fatalf("EnsureCollections() error = %v", err)
	}
	return s
}

func staticSummary(text string) SummaryFunc {
	return func(context.Context, int64) (string, error) { return text, nil }
}

func newTestScheduler(store *storage.Storage, clock *fakeClock, rec *recorder, summary SummaryFunc) *Scheduler {
	if summary == nil {
		summary = staticSummary("Nothing to brief today.")
	}
	return New(store, rec.deliver, summary, logger.Nop(), Options{Location: kst, Clock: clock})
}
