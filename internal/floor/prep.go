package floor

import (
	"sync"
	"time"

	"github.com/hurrypos/floor/pkg/enums/kitchenstatus"
)

// PrepMeta is the kitchen-progress readout for one table: how long the order
// has been running, how much preparation time remains and the formatted
// ready-at label shown on the card.
type PrepMeta struct {
	IsDelayed   bool   `json:"is_delayed"`
	RemainingMs int64  `json:"remaining_ms"`
	ElapsedMs   int64  `json:"elapsed_ms"`
	StartedAt   int64  `json:"started_at,omitempty"`
	StatusLabel string `json:"status_label,omitempty"`
}

var defaultPrepMeta = PrepMeta{}

// orderPrepMinutes picks the order-level preparation time when set, otherwise
// the longest line estimate, each line weighted by quantity.
func orderPrepMinutes(o *Order, productPrep map[int64]float64) float64 {
	if o == nil {
		return 0
	}
	var maxMinutes float64
	for i := range o.Items {
		item := &o.Items[i]
		minutes := item.PreparationTime
		if minutes <= 0 && item.ProductID != nil {
			minutes = productPrep[*item.ProductID]
		}
		if minutes <= 0 {
			continue
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		if total := minutes * float64(qty); total > maxMinutes {
			maxMinutes = total
		}
	}
	return maxMinutes
}

// prepStartMs walks the fallback chain for when cooking started: the order's
// own prep timestamp, its kitchen-status change, then the first line that has
// either.
func prepStartMs(o *Order, now time.Time) int64 {
	if ms := ParseLooseDateMs(o.PrepStartedAt, now); ms != 0 {
		return ms
	}
	if ms := ParseLooseDateMs(o.KitchenDeliveredAt, now); ms != 0 {
		return ms
	}
	for i := range o.Items {
		if ms := ParseLooseDateMs(o.Items[i].PrepStartedAt, now); ms != 0 {
			return ms
		}
	}
	for i := range o.Items {
		if ms := ParseLooseDateMs(o.Items[i].KitchenStatusUpdatedAt, now); ms != 0 {
			return ms
		}
	}
	return 0
}

func orderReadyAtMs(o *Order, productPrep map[int64]float64, now time.Time) int64 {
	if ms := ParseLooseDateMs(o.EstimatedReadyAt, now); ms != 0 {
		return ms
	}
	start := prepStartMs(o, now)
	minutes := orderPrepMinutes(o, productPrep)
	if start == 0 || minutes <= 0 {
		return 0
	}
	return start + int64(minutes*float64(time.Minute.Milliseconds()))
}

func orderStartedAtMs(o *Order, now time.Time) int64 {
	if o.ConfirmedSinceMs > 0 {
		return o.ConfirmedSinceMs
	}
	if ms := ParseLooseDateMs(o.UpdatedAt, now); ms != 0 {
		return ms
	}
	return ParseLooseDateMs(o.CreatedAt, now)
}

// kitchenStatusLabel is the label fallback when no ready-at estimate exists:
// the order-level workflow state first, then the first line that carries one.
func kitchenStatusLabel(o *Order) string {
	if l := kitchenstatus.Label(o.KitchenStatus); l != "" {
		return l
	}
	for i := range o.Items {
		if l := kitchenstatus.Label(o.Items[i].KitchenStatus); l != "" {
			return l
		}
	}
	return ""
}

func computeOrderDelayed(o *Order, nowMs int64) bool {
	if o == nil || NormalizeStatus(o.Status) != "confirmed" || o.CreatedAt == "" {
		return false
	}
	if len(o.Items) == 0 {
		return false
	}
	createdMs := ParseLooseDateMs(o.CreatedAt, msToTime(nowMs))
	if createdMs == 0 {
		return false
	}
	return nowMs-createdMs > time.Minute.Milliseconds()
}

// PrepTracker recomputes prep meta for every table on the display tick. The
// tick only moves the clock; it never fetches.
type PrepTracker struct {
	mu          sync.Mutex
	now         func() time.Time
	productPrep map[int64]float64
	metaByTable map[int]PrepMeta
}

func NewPrepTracker(now func() time.Time) *PrepTracker {
	if now == nil {
		now = time.Now
	}
	return &PrepTracker{
		now:         now,
		productPrep: make(map[int64]float64),
		metaByTable: make(map[int]PrepMeta),
	}
}

// SetProductPrepTimes installs the per-product preparation minutes used when
// lines carry no estimate of their own.
func (p *PrepTracker) SetProductPrepTimes(prep map[int64]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.productPrep = prep
}

// Tick recomputes every table's prep meta against the given snapshot.
func (p *PrepTracker) Tick(snap Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	nowMs := now.UnixMilli()
	next := make(map[int]PrepMeta, len(snap.Orders))
	for _, o := range snap.Orders {
		if IsCancelledStatus(o.Status) {
			next[o.TableNumber] = defaultPrepMeta
			continue
		}
		startedAt := orderStartedAtMs(o, now)
		var elapsed int64
		if startedAt > 0 && nowMs > startedAt {
			elapsed = nowMs - startedAt
		}
		readyAt := orderReadyAtMs(o, p.productPrep, now)
		var remaining int64
		label := ""
		if readyAt > 0 {
			if readyAt > nowMs {
				remaining = readyAt - nowMs
			}
			label = time.UnixMilli(readyAt).Local().Format("15:04")
		} else {
			label = kitchenStatusLabel(o)
		}
		next[o.TableNumber] = PrepMeta{
			IsDelayed:   computeOrderDelayed(o, nowMs),
			RemainingMs: remaining,
			ElapsedMs:   elapsed,
			StartedAt:   startedAt,
			StatusLabel: label,
		}
	}
	p.metaByTable = next
}

// TablePrepMeta returns the last computed meta for a table.
func (p *PrepTracker) TablePrepMeta(tableNumber int) PrepMeta {
	p.mu.Lock()
	defer p.mu.Unlock()
	if meta, ok := p.metaByTable[tableNumber]; ok {
		return meta
	}
	return defaultPrepMeta
}
