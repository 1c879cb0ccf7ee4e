package floor

import (
	"context"
	"sync"
	"time"
)

// fakeOrdersData implements OrdersData with pluggable func fields so each
// test controls exactly what the collaborator returns.
type fakeOrdersData struct {
	ListOpenOrdersFunc      func(ctx context.Context) ([]map[string]interface{}, error)
	ListReservationsFunc    func(ctx context.Context, startDate string) ([]map[string]interface{}, error)
	ListOrderItemsFunc      func(ctx context.Context, orderID int64) ([]map[string]interface{}, error)
	GetOrderReservationFunc func(ctx context.Context, orderID int64) (map[string]interface{}, error)
}

func (f *fakeOrdersData) ListOpenOrders(ctx context.Context) ([]map[string]interface{}, error) {
	if f.ListOpenOrdersFunc == nil {
		return nil, nil
	}
	return f.ListOpenOrdersFunc(ctx)
}

func (f *fakeOrdersData) ListReservations(ctx context.Context, startDate string) ([]map[string]interface{}, error) {
	if f.ListReservationsFunc == nil {
		return nil, nil
	}
	return f.ListReservationsFunc(ctx, startDate)
}

func (f *fakeOrdersData) ListOrderItems(ctx context.Context, orderID int64) ([]map[string]interface{}, error) {
	if f.ListOrderItemsFunc == nil {
		return nil, nil
	}
	return f.ListOrderItemsFunc(ctx, orderID)
}

func (f *fakeOrdersData) GetOrderReservation(ctx context.Context, orderID int64) (map[string]interface{}, error) {
	if f.GetOrderReservationFunc == nil {
		return nil, nil
	}
	return f.GetOrderReservationFunc(ctx, orderID)
}

// manualScheduler records scheduled work and only runs it when the test says
// so, making coalescing observable.
type manualScheduler struct {
	mu        sync.Mutex
	idle      map[string]func(context.Context)
	scheduled map[string]int
	intervals []func(context.Context)
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{
		idle:      make(map[string]func(context.Context)),
		scheduled: make(map[string]int),
	}
}

func (s *manualScheduler) ScheduleIdle(key string, delay time.Duration, task func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idle[key] = task
	s.scheduled[key]++
}

func (s *manualScheduler) ScheduleInterval(interval time.Duration, task func(context.Context)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervals = append(s.intervals, task)
	return func() {}
}

func (s *manualScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.idle, key)
}

func (s *manualScheduler) Stop() {}

// runPending executes and clears every pending idle task, returning how many
// ran.
func (s *manualScheduler) runPending(ctx context.Context) int {
	s.mu.Lock()
	tasks := make([]func(context.Context), 0, len(s.idle))
	for key, task := range s.idle {
		tasks = append(tasks, task)
		delete(s.idle, key)
	}
	s.mu.Unlock()
	for _, task := range tasks {
		task(ctx)
	}
	return len(tasks)
}

func (s *manualScheduler) scheduleCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled[key]
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int { return &v }
func boolPtr(v bool) *bool { return &v }

// fixedNow returns a deterministic clock for tests.
func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testNow = time.Date(2025, 8, 28, 12, 0, 0, 0, time.Local)
