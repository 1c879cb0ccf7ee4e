package floor

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/aquamarinepk/aqm"
)

// TimerTracker owns the confirmed-since timestamps shown on table cards.
// The map is keyed by table number and survives restarts through the durable
// cache; resolution itself is pure so the store can run it inside a merge
// pass without side effects.
type TimerTracker struct {
	cache  TenantScopedCache
	tenant string
	logger aqm.Logger
}

func NewTimerTracker(cache TenantScopedCache, tenant string, logger aqm.Logger) *TimerTracker {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &TimerTracker{cache: cache, tenant: tenant, logger: logger}
}

// TableTimerKey is the timer-map key for a table.
func TableTimerKey(tableNumber int) string {
	return strconv.Itoa(tableNumber)
}

// Load reads the persisted timer map. Failures degrade to an empty map.
func (t *TimerTracker) Load(ctx context.Context) map[string]int64 {
	timers := make(map[string]int64)
	if t == nil || t.cache == nil {
		return timers
	}
	data, err := t.cache.Read(ctx, t.tenant, CacheKeyTimers)
	if err != nil {
		t.logger.Error("cannot read confirmed timers", "error", err)
		return timers
	}
	if len(data) == 0 {
		return timers
	}
	if err := json.Unmarshal(data, &timers); err != nil {
		t.logger.Error("cannot decode confirmed timers", "error", err)
		return make(map[string]int64)
	}
	return timers
}

// Persist writes the timer map back, best effort.
func (t *TimerTracker) Persist(ctx context.Context, timers map[string]int64) {
	if t == nil || t.cache == nil {
		return
	}
	data, err := json.Marshal(timers)
	if err != nil {
		return
	}
	if err := t.cache.Write(ctx, t.tenant, CacheKeyTimers, data); err != nil {
		t.logger.Error("cannot persist confirmed timers", "error", err)
	}
}

// ResolveContext carries the mutable working state of one resolution pass.
type ResolveContext struct {
	// Timers is mutated in place: entries are stamped or deleted as tables
	// change state.
	Timers map[string]int64
	// TableKey addresses the table under resolution inside Timers.
	TableKey string
	NowMs    int64
	// IsInitialLoad suppresses fresh stamps for tables first seen on boot,
	// where "new to us" does not mean "newly confirmed".
	IsInitialLoad bool
}

// ResolveConfirmedSince decides the confirmed-timer start for one table given
// its previous and next order. prev is nil when the table was absent from the
// previous snapshot. Returns zero when no timer should run.
//
// The stored value is sticky: once a confirmed stretch has a start, later
// resolutions return it unchanged until the table leaves the confirmed state,
// so the displayed elapsed time never jumps backwards. The whole function is
// idempotent for a fixed (prev, next, timers) input.
func ResolveConfirmedSince(prev, next *Order, rc ResolveContext) int64 {
	if rc.Timers == nil {
		return 0
	}
	if next == nil || NormalizeStatus(next.Status) != "confirmed" {
		delete(rc.Timers, rc.TableKey)
		return 0
	}
	if stored, ok := rc.Timers[rc.TableKey]; ok && stored > 0 {
		return stored
	}
	if next.Items != nil && IsEffectivelyFree(next, rc.NowMs) {
		delete(rc.Timers, rc.TableKey)
		return 0
	}
	if prev == nil {
		if rc.IsInitialLoad {
			// Fall through to the timestamp fallback below.
		} else {
			rc.Timers[rc.TableKey] = rc.NowMs
			return rc.NowMs
		}
	}
	if prev != nil {
		if prev.Items != nil && IsEffectivelyFree(prev, rc.NowMs) {
			rc.Timers[rc.TableKey] = rc.NowMs
			return rc.NowMs
		}
		if NormalizeStatus(prev.Status) == "confirmed" && prev.ConfirmedSinceMs > 0 {
			rc.Timers[rc.TableKey] = prev.ConfirmedSinceMs
			return prev.ConfirmedSinceMs
		}
	}
	stampSource := next.UpdatedAt
	if stampSource == "" {
		stampSource = next.CreatedAt
	}
	stamp := ParseLooseDateMs(stampSource, msToTime(rc.NowMs))
	if stamp <= 0 {
		stamp = rc.NowMs
	}
	rc.Timers[rc.TableKey] = stamp
	return stamp
}
