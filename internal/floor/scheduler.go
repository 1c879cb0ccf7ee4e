package floor

import (
	"context"
	"sync"
	"time"
)

// TaskScheduler coordinates deferred and periodic work for the dashboard.
// ScheduleIdle coalesces by key with cancel-and-replace semantics: a burst of
// schedules for the same key yields one task run, at the delay measured from
// the last schedule. Interval tasks are display ticks only; nothing scheduled
// here may fetch on its own.
type TaskScheduler interface {
	ScheduleIdle(key string, delay time.Duration, task func(context.Context))
	ScheduleInterval(interval time.Duration, task func(context.Context)) (cancel func())
	Cancel(key string)
	Stop()
}

// RunLoopScheduler executes every task on a single goroutine, so tasks never
// race each other and can touch shared view state without locking.
type RunLoopScheduler struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	tasks   chan func(context.Context)
	pending map[string]*time.Timer
	stopped bool
}

func NewRunLoopScheduler() *RunLoopScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &RunLoopScheduler{
		ctx:     ctx,
		cancel:  cancel,
		tasks:   make(chan func(context.Context), 64),
		pending: make(map[string]*time.Timer),
	}
	go s.loop()
	return s
}

func (s *RunLoopScheduler) loop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case task := <-s.tasks:
			task(s.ctx)
		}
	}
}

func (s *RunLoopScheduler) enqueue(task func(context.Context)) {
	select {
	case s.tasks <- task:
	case <-s.ctx.Done():
	}
}

func (s *RunLoopScheduler) ScheduleIdle(key string, delay time.Duration, task func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if prev, ok := s.pending[key]; ok {
		prev.Stop()
	}
	s.pending[key] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
		s.enqueue(task)
	})
}

func (s *RunLoopScheduler) ScheduleInterval(interval time.Duration, task func(context.Context)) func() {
	ctx, cancel := context.WithCancel(s.ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.enqueue(task)
			}
		}
	}()
	return cancel
}

func (s *RunLoopScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.pending[key]; ok {
		prev.Stop()
		delete(s.pending, key)
	}
}

func (s *RunLoopScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for key, timer := range s.pending {
		timer.Stop()
		delete(s.pending, key)
	}
	s.mu.Unlock()
	s.cancel()
}
