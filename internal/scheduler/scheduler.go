// Package scheduler runs registered poll tasks one at a time in a fair
// rotation, spacing them so that a full rotation takes about one cycle
// period regardless of how many tasks are registered.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultCycle    = 2 * time.Second
	DefaultMinDelay = 50 * time.Millisecond
	DefaultIdle     = 500 * time.Millisecond
)

// Task is one unit of polling work.
type Task func(ctx context.Context) error

type entry struct {
	name string
	task Task
}

// Scheduler is a cooperative round-robin executor. At most one task runs at
// any time.
type Scheduler struct {
	mu     sync.Mutex
	tasks  []*entry
	cursor int

	cycle    time.Duration
	minDelay time.Duration
	idle     time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCycle sets the target period of one full rotation.
func WithCycle(d time.Duration) Option {
	return func(s *Scheduler) { s.cycle = d }
}

// WithMinDelay sets the lower bound of the wait between two tasks.
func WithMinDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.minDelay = d }
}

// WithIdle sets how long to wait before rechecking an empty task list.
func WithIdle(d time.Duration) Option {
	return func(s *Scheduler) { s.idle = d }
}

// WithLogger sets the logger used for task failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New creates a Scheduler. Call Run to start it.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		cycle:    DefaultCycle,
		minDelay: DefaultMinDelay,
		idle:     DefaultIdle,
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Register adds a task to the rotation. It takes effect on the next cycle.
// The returned function removes the task; calling it more than once is a no-op.
func (s *Scheduler) Register(name string, task Task) func() {
	e := &entry{name: name, task: task}
	s.mu.Lock()
	s.tasks = append(s.tasks, e)
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() { s.remove(e) })
	}
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) remove(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t != e {
			continue
		}
		s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
		if i < s.cursor {
			s.cursor--
		}
		return
	}
}

// Run drives the rotation until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	var last time.Duration
	for {
		n := s.Len()
		if n == 0 {
			if !s.wait(ctx, s.idle) {
				return nil
			}
			continue
		}
		delay := s.cycle/time.Duration(n) - last
		if delay < s.minDelay {
			delay = s.minDelay
		}
		if !s.wait(ctx, delay) {
			return nil
		}
		e := s.next()
		if e == nil {
			continue
		}
		start := s.now()
		s.invoke(ctx, e)
		last = s.now().Sub(start)
	}
}

func (s *Scheduler) next() *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return nil
	}
	if s.cursor >= len(s.tasks) {
		s.cursor = 0
	}
	e := s.tasks[s.cursor]
	s.cursor = (s.cursor + 1) % len(s.tasks)
	return e
}

func (s *Scheduler) invoke(ctx context.Context, e *entry) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("poll task panicked", zap.String("task", e.name), zap.Error(fmt.Errorf("%v", r)))
		}
	}()
	if err := e.task(ctx); err != nil {
		s.log.Warn("poll task failed", zap.String("task", e.name), zap.Error(err))
	}
}

func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
