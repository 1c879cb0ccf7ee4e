package floor

import (
	"context"
	"testing"
	"time"
)

func TestResolveConfirmedSince(t *testing.T) {
	nowMs := testNow.UnixMilli()
	earlier := testNow.Add(-20 * time.Minute).UnixMilli()

	tests := []struct {
		name       string
		prev, next *Order
		timers     map[string]int64
		isInitial  bool
		want       int64
		wantStored bool
	}{
		{
			name:   "nil next clears the timer",
			next:   nil,
			timers: map[string]int64{"5": earlier},
			want:   0,
		},
		{
			name:   "non-confirmed next clears the timer",
			next:   &Order{TableNumber: 5, Status: "paid"},
			timers: map[string]int64{"5": earlier},
			want:   0,
		},
		{
			name:       "stored value is sticky",
			prev:       &Order{TableNumber: 5, Status: "confirmed"},
			next:       &Order{TableNumber: 5, Status: "confirmed", Total: 30},
			timers:     map[string]int64{"5": earlier},
			want:       earlier,
			wantStored: true,
		},
		{
			name:   "hydrated free table clears the timer",
			next:   &Order{TableNumber: 5, Status: "confirmed", Items: []OrderItem{}},
			timers: map[string]int64{},
			want:   0,
		},
		{
			name:       "table newly confirmed mid-session stamps now",
			next:       &Order{TableNumber: 5, Status: "confirmed", Total: 30},
			timers:     map[string]int64{},
			want:       nowMs,
			wantStored: true,
		},
		{
			name:       "initial load falls back to the order timestamp",
			next:       &Order{TableNumber: 5, Status: "confirmed", Total: 30, UpdatedAt: testNow.Add(-20 * time.Minute).Format("2006-01-02T15:04:05")},
			timers:     map[string]int64{},
			isInitial:  true,
			want:       earlier,
			wantStored: true,
		},
		{
			name:       "initial load with no timestamp stamps now",
			next:       &Order{TableNumber: 5, Status: "confirmed", Total: 30},
			timers:     map[string]int64{},
			isInitial:  true,
			want:       nowMs,
			wantStored: true,
		},
		{
			name:       "previously free table stamps now",
			prev:       &Order{TableNumber: 5, Status: "confirmed", Items: []OrderItem{}},
			next:       &Order{TableNumber: 5, Status: "confirmed", Total: 30, UpdatedAt: testNow.Add(-20 * time.Minute).Format("2006-01-02T15:04:05")},
			timers:     map[string]int64{},
			want:       nowMs,
			wantStored: true,
		},
		{
			name:       "carries the previous confirmed start",
			prev:       &Order{TableNumber: 5, Status: "confirmed", Total: 30, ConfirmedSinceMs: earlier},
			next:       &Order{TableNumber: 5, Status: "confirmed", Total: 35},
			timers:     map[string]int64{},
			want:       earlier,
			wantStored: true,
		},
		{
			name:       "falls back to updated_at when nothing else applies",
			prev:       &Order{TableNumber: 5, Status: "paid", Total: 30},
			next:       &Order{TableNumber: 5, Status: "confirmed", Total: 30, UpdatedAt: testNow.Add(-20 * time.Minute).Format("2006-01-02T15:04:05")},
			timers:     map[string]int64{},
			want:       earlier,
			wantStored: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := ResolveContext{
				Timers:        tt.timers,
				TableKey:      "5",
				NowMs:         nowMs,
				IsInitialLoad: tt.isInitial,
			}
			got := ResolveConfirmedSince(tt.prev, tt.next, rc)
			if got != tt.want {
				t.Errorf("ResolveConfirmedSince() = %d, want %d", got, tt.want)
			}
			stored, ok := tt.timers["5"]
			if ok != tt.wantStored {
				t.Errorf("timer stored = %v, want %v", ok, tt.wantStored)
			}
			if tt.wantStored && stored != tt.want {
				t.Errorf("stored timer = %d, want %d", stored, tt.want)
			}
		})
	}
}

func TestResolveConfirmedSinceIsIdempotent(t *testing.T) {
	nowMs := testNow.UnixMilli()
	timers := map[string]int64{}
	next := &Order{TableNumber: 5, Status: "confirmed", Total: 30}
	rc := ResolveContext{Timers: timers, TableKey: "5", NowMs: nowMs}

	first := ResolveConfirmedSince(nil, next, rc)
	second := ResolveConfirmedSince(nil, next, rc)
	if first != second {
		t.Errorf("second resolution = %d, want %d", second, first)
	}
	if len(timers) != 1 {
		t.Errorf("timers = %v, want exactly one entry", timers)
	}
}

func TestResolveConfirmedSinceNilTimers(t *testing.T) {
	got := ResolveConfirmedSince(nil, &Order{TableNumber: 5, Status: "confirmed", Total: 1}, ResolveContext{TableKey: "5"})
	if got != 0 {
		t.Errorf("ResolveConfirmedSince() = %d, want 0 with no timer map", got)
	}
}

func TestEvictTimersDropsOnlyVanishedTables(t *testing.T) {
	timers := map[string]int64{"3": 1, "5": 2, "9": 3}
	prev := map[int]*Order{
		3: {TableNumber: 3},
		5: {TableNumber: 5},
	}
	merged := []*Order{{TableNumber: 5, Status: "confirmed"}}

	evictTimers(merged, prev, timers)

	if _, ok := timers["3"]; ok {
		t.Errorf("timer for dropped table 3 survived eviction")
	}
	if _, ok := timers["5"]; !ok {
		t.Errorf("timer for surviving table 5 was evicted")
	}
	// Table 9 was never in prev, so eviction leaves it alone.
	if _, ok := timers["9"]; !ok {
		t.Errorf("timer for table outside prev was evicted")
	}
}

func TestTimerTrackerRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()
	tracker := NewTimerTracker(cache, "t1", nil)

	timers := map[string]int64{"5": 123, "7": 456}
	tracker.Persist(ctx, timers)

	loaded := tracker.Load(ctx)
	if len(loaded) != 2 || loaded["5"] != 123 || loaded["7"] != 456 {
		t.Errorf("Load() = %v, want %v", loaded, timers)
	}

	other := NewTimerTracker(cache, "t2", nil)
	if loaded := other.Load(ctx); len(loaded) != 0 {
		t.Errorf("other tenant Load() = %v, want empty", loaded)
	}
}

func TestTimerTrackerLoadDegradesOnBadData(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()
	if err := cache.Write(ctx, "t1", CacheKeyTimers, []byte("not json")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	tracker := NewTimerTracker(cache, "t1", nil)
	if loaded := tracker.Load(ctx); len(loaded) != 0 {
		t.Errorf("Load() = %v, want empty map on decode failure", loaded)
	}
}
