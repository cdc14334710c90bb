// ABOUTME: Registry keeps named one-shot timers and re-arms jobs that ask to run again
// ABOUTME: A cancel or replace that races with a firing job always wins
package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/jerryymjo/jarvis-memory/internal/logger"
)

// Job runs when its timer fires and returns the next fire time, or the zero
// time when it is finished.
type Job func() time.Time

type entry struct {
	timer Timer
}

// Registry holds at most one timer per name. The mutex only guards the map;
// jobs run without it.
type Registry struct {
	clock Clock
	log   *logger.Logger

	mu      sync.Mutex
	entries map[string]*entry
	stopped bool
}

func NewRegistry(clock Clock, log *logger.Logger) *Registry {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Registry{
		clock:   clock,
		log:     log,
		entries: make(map[string]*entry),
	}
}

// Schedule arms job to run at at, replacing any timer registered under name.
// A time in the past fires immediately.
func (r *Registry) Schedule(name string, at time.Time, job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.armLocked(name, at, job)
}

func (r *Registry) armLocked(name string, at time.Time, job Job) {
	if old, ok := r.entries[name]; ok {
		old.timer.Stop()
	}

	delay := at.Sub(r.clock.Now())
	if delay < 0 {
		delay = 0
	}

	e := &entry{}
	r.entries[name] = e
	e.timer = r.clock.AfterFunc(delay, func() { r.fire(name, e, job) })
	r.log.Debug("Timer armed", "name", name, "at", at, "delay", delay)
}

func (r *Registry) fire(name string, e *entry, job Job) {
	if !r.current(name, e) {
		return
	}

	next := r.run(name, job)

	r.mu.Lock()
	defer r.mu.Unlock()
	// Cancelled or replaced while the job ran
	if r.entries[name] != e || r.stopped {
		return
	}
	if next.IsZero() {
		delete(r.entries, name)
		return
	}
	r.armLocked(name, next, job)
}

func (r *Registry) current(name string, e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[name] == e
}

func (r *Registry) run(name string, job Job) (next time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Scheduled job panicked", "name", name, "panic", rec)
			next = time.Time{}
		}
	}()
	return job()
}

// Cancel stops the named timer. It reports whether one was registered.
func (r *Registry) Cancel(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(r.entries, name)
	return true
}

// Names returns the registered timer names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stop cancels every timer. Later calls to Schedule are ignored.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.entries {
		e.timer.Stop()
		delete(r.entries, name)
	}
	r.stopped = true
}
