// Package schedule provides a cooperative one-shot task scheduler. Tasks fire
// once inside an explicit validity window, can be cancelled, and are removed
// from the table before they run so a replayed schedule call can never
// double-apply the same work.
package schedule

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrStopped is returned when scheduling against a stopped scheduler.
	ErrStopped = errors.New("schedule: scheduler stopped")
	// ErrInvalidWindow is returned when the validity window closes before
	// the task would fire.
	ErrInvalidWindow = errors.New("schedule: validity window ends before run time")
)

type task struct {
	id       uuid.UUID
	timer    *time.Timer
	notAfter time.Time
	fn       func()
}

// Scheduler owns a table of pending one-shot tasks. The mutex only protects
// the table; task functions run outside it on the timer goroutine.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*task
	stopped bool
	logger  *slog.Logger
	now     func() time.Time
}

// New returns an empty scheduler. A nil logger falls back to the default.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		tasks:  make(map[uuid.UUID]*task),
		logger: logger,
		now:    time.Now,
	}
}

// Schedule registers fn to run once after delay, provided the firing moment
// still falls inside the validity window [now, now+validFor]. A zero validFor
// leaves the window open-ended. The returned id cancels the task.
func (s *Scheduler) Schedule(delay, validFor time.Duration, fn func()) (uuid.UUID, error) {
	if fn == nil {
		return uuid.Nil, errors.New("schedule: nil task function")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return uuid.Nil, ErrStopped
	}

	var notAfter time.Time
	if validFor > 0 {
		notAfter = s.now().Add(validFor)
		if s.now().Add(delay).After(notAfter) {
			return uuid.Nil, ErrInvalidWindow
		}
	}

	id := uuid.New()
	t := &task{id: id, notAfter: notAfter, fn: fn}
	t.timer = time.AfterFunc(delay, func() { s.fire(id) })
	s.tasks[id] = t
	return id, nil
}

// fire runs a pending task. The task is removed from the table before its
// function executes, so re-entrant scheduling from inside fn is safe and a
// second fire of the same id is a no-op.
func (s *Scheduler) fire(id uuid.UUID) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
	}
	stopped := s.stopped
	s.mu.Unlock()
	if !ok || stopped {
		return
	}
	if !t.notAfter.IsZero() && s.now().After(t.notAfter) {
		s.logger.Warn("scheduled task expired before firing", "task", id.String())
		return
	}
	t.fn()
}

// Cancel removes a pending task. It reports whether the task was still
// pending; cancelling an already fired or unknown id is harmless.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, id)
	return true
}

// Pending reports the number of tasks waiting to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every pending task and refuses further scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for id, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, id)
	}
}
