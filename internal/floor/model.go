package floor

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// TableViewModel is one table card on the dashboard: static config joined
// with the table's current order (or reservation shadow) and every derived
// field the renderer needs, precomputed.
type TableViewModel struct {
	TableNumber int    `json:"table_number"`
	Seats       int    `json:"seats,omitempty"`
	Guests      *int   `json:"guests,omitempty"`
	Area        string `json:"area"`
	Label       string `json:"label,omitempty"`
	Color       string `json:"color,omitempty"`

	Order               *Order       `json:"order,omitempty"`
	ReservationFallback *Reservation `json:"reservation_fallback,omitempty"`

	TableStatus      string  `json:"table_status"`
	TableColor       string  `json:"table_color"`
	UnpaidTotal      float64 `json:"unpaid_total"`
	ActiveOrderCount int     `json:"active_order_count"`
	HasUnpaidItems   bool    `json:"has_unpaid_items"`
	IsFullyPaid      bool    `json:"is_fully_paid"`
	IsFreeTable      bool    `json:"is_free_table"`
	IsReservedTable  bool    `json:"is_reserved_table"`
}

type derivedFields struct {
	tableStatus      string
	tableColor       string
	unpaidTotal      float64
	activeOrderCount int
	hasUnpaidItems   bool
	isFullyPaid      bool
	isFreeTable      bool
	isReservedTable  bool
}

var emptyDerivedFields = derivedFields{tableColor: ColorFree, isFreeTable: true}

func deriveTableFields(o *Order, nowMs int64) derivedFields {
	if o == nil {
		return emptyDerivedFields
	}
	status := NormalizeStatus(o.Status)
	count := 1
	switch {
	case len(o.MergedIDs) > 0:
		count = len(o.MergedIDs)
	case len(o.Suborders) > 1:
		count = len(o.Suborders)
	}
	return derivedFields{
		tableStatus:      status,
		tableColor:       TableColor(o, nowMs),
		unpaidTotal:      DisplayTotal(o),
		activeOrderCount: count,
		hasUnpaidItems:   HasUnpaidAnywhere(o),
		isFullyPaid:      IsOrderFullyPaid(o),
		isFreeTable:      IsEffectivelyFree(o, nowMs),
		isReservedTable:  status == "reserved" || o.OrderType == "reservation" || o.ReservationDate != "",
	}
}

type shadowEntry struct {
	key   string
	order *Order
}

func reservationShadowKey(r *Reservation) string {
	if r == nil {
		return ""
	}
	orderID := ""
	if r.OrderID != nil {
		orderID = fmt.Sprintf("%d", *r.OrderID)
	}
	return fmt.Sprintf("%d|%s|%d|%s|%s|%d|%s",
		r.ID, orderID, r.TableNumber, r.ReservationDate, r.ReservationTime, r.Clients, r.Notes)
}

func buildReservationShadowOrder(r *Reservation, tableNumber int) *Order {
	shadow := &Order{
		ID:               cloneInt64Ptr(r.OrderID),
		TableNumber:      tableNumber,
		Status:           "reserved",
		OrderType:        "reservation",
		Items:            []OrderItem{},
		ReservationDate:  r.ReservationDate,
		ReservationTime:  r.ReservationTime,
		ReservationNotes: r.Notes,
		CustomerName:     r.CustomerName,
		CustomerPhone:    r.CustomerPhone,
		Reservation:      r,
	}
	if r.ID != 0 {
		id := r.ID
		shadow.ReservationID = &id
	}
	if r.Clients > 0 {
		clients := r.Clients
		shadow.ReservationClients = &clients
	}
	return shadow
}

func reservationSortKey(r *Reservation) string {
	if r == nil || r.ReservationDate == "" {
		return "9999-99-99 99:99:99"
	}
	clock := normalizeClockTime(r.ReservationTime)
	if clock == "" {
		clock = "00:00:00"
	}
	return r.ReservationDate + " " + clock
}

func reservationDueNow(r *Reservation, nowMs int64) bool {
	sched, ok := ScheduleFromReservation(r, time.UnixMilli(nowMs))
	if !ok {
		return true
	}
	return nowMs >= sched.WhenMs
}

func canReuseTableModel(prev, next *TableViewModel) bool {
	if prev == nil || next == nil {
		return false
	}
	return prev.TableNumber == next.TableNumber &&
		prev.Seats == next.Seats &&
		intPtrEqual(prev.Guests, next.Guests) &&
		prev.Area == next.Area &&
		prev.Label == next.Label &&
		prev.Color == next.Color &&
		prev.Order == next.Order &&
		prev.ReservationFallback == next.ReservationFallback &&
		prev.TableStatus == next.TableStatus &&
		prev.TableColor == next.TableColor &&
		prev.UnpaidTotal == next.UnpaidTotal &&
		prev.ActiveOrderCount == next.ActiveOrderCount &&
		prev.HasUnpaidItems == next.HasUnpaidItems &&
		prev.IsFullyPaid == next.IsFullyPaid &&
		prev.IsFreeTable == next.IsFreeTable &&
		prev.IsReservedTable == next.IsReservedTable
}

func intPtrEqual(a, b *int) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

// ModelBuilder turns table configs plus a store snapshot into view models,
// reusing pointers for anything that did not observably change so consumers
// can diff by identity. It keeps two memos across builds: the previous view
// model per table and the reservation shadow order per table, the latter
// keyed by the reservation's composite identity and evicted as soon as the
// identity shifts.
type ModelBuilder struct {
	mu           sync.Mutex
	now          func() time.Time
	prevByNumber map[int]*TableViewModel
	shadowCache  map[int]shadowEntry
	prevGrouped  map[string][]*TableViewModel
}

func NewModelBuilder(now func() time.Time) *ModelBuilder {
	if now == nil {
		now = time.Now
	}
	return &ModelBuilder{
		now:          now,
		prevByNumber: make(map[int]*TableViewModel),
		shadowCache:  make(map[int]shadowEntry),
		prevGrouped:  make(map[string][]*TableViewModel),
	}
}

// Build produces the table list in config order plus the per-area grouping.
func (b *ModelBuilder) Build(configs []TableConfig, snap Snapshot) ([]*TableViewModel, map[string][]*TableViewModel) {
	b.mu.Lock()
	defer b.mu.Unlock()

	nowMs := b.now().UnixMilli()

	byTable := make(map[int]*Order, len(snap.Orders))
	for _, o := range snap.Orders {
		byTable[o.TableNumber] = o
	}
	reservationsByTable := make(map[int]*Reservation, len(snap.Reservations))
	for _, r := range snap.Reservations {
		if r.TableNumber <= 0 {
			continue
		}
		existing, ok := reservationsByTable[r.TableNumber]
		if !ok || reservationSortKey(r) < reservationSortKey(existing) {
			reservationsByTable[r.TableNumber] = r
		}
	}

	sorted := make([]TableConfig, len(configs))
	copy(sorted, configs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	nextByNumber := make(map[int]*TableViewModel, len(sorted))
	nextShadowCache := make(map[int]shadowEntry)
	tables := make([]*TableViewModel, 0, len(sorted))

	for _, cfg := range sorted {
		orderRaw := byTable[cfg.Number]
		fallback := reservationsByTable[cfg.Number]

		order := orderRaw
		switch {
		case orderRaw != nil && IsReservationLike(orderRaw, nowMs):
			order = orderRaw
		case (orderRaw == nil || IsEffectivelyFree(orderRaw, nowMs)) &&
			fallback != nil && reservationDueNow(fallback, nowMs):
			key := reservationShadowKey(fallback)
			if entry, ok := b.shadowCache[cfg.Number]; ok && entry.key == key {
				order = entry.order
				nextShadowCache[cfg.Number] = entry
			} else {
				entry := shadowEntry{key: key, order: buildReservationShadowOrder(fallback, cfg.Number)}
				nextShadowCache[cfg.Number] = entry
				order = entry.order
			}
		case orderRaw != nil && IsEffectivelyFree(orderRaw, nowMs) &&
			HasReservationSignal(orderRaw) && !IsReservationDue(orderRaw, nowMs):
			// A future booking does not occupy the card before its time.
			order = nil
		}

		derived := deriveTableFields(order, nowMs)
		area := cfg.Area
		if area == "" {
			area = "Main Hall"
		}
		next := &TableViewModel{
			TableNumber:         cfg.Number,
			Seats:               cfg.Seats,
			Guests:              cfg.Guests,
			Area:                area,
			Label:               cfg.Label,
			Color:               cfg.Color,
			Order:               order,
			ReservationFallback: fallback,
			TableStatus:         derived.tableStatus,
			TableColor:          derived.tableColor,
			UnpaidTotal:         derived.unpaidTotal,
			ActiveOrderCount:    derived.activeOrderCount,
			HasUnpaidItems:      derived.hasUnpaidItems,
			IsFullyPaid:         derived.isFullyPaid,
			IsFreeTable:         derived.isFreeTable,
			IsReservedTable:     derived.isReservedTable,
		}

		if prev := b.prevByNumber[cfg.Number]; canReuseTableModel(prev, next) {
			nextByNumber[cfg.Number] = prev
			tables = append(tables, prev)
			continue
		}
		nextByNumber[cfg.Number] = next
		tables = append(tables, next)
	}

	b.prevByNumber = nextByNumber
	b.shadowCache = nextShadowCache

	grouped := b.groupTables(tables)
	return tables, grouped
}

// groupTables buckets by area, reusing the previous slice per area (and the
// previous map as a whole) when contents are pointer-identical.
func (b *ModelBuilder) groupTables(tables []*TableViewModel) map[string][]*TableViewModel {
	next := make(map[string][]*TableViewModel)
	for _, t := range tables {
		next[t.Area] = append(next[t.Area], t)
	}
	for area, list := range next {
		prevList, ok := b.prevGrouped[area]
		if !ok || len(prevList) != len(list) {
			continue
		}
		same := true
		for i := range list {
			if list[i] != prevList[i] {
				same = false
				break
			}
		}
		if same {
			next[area] = prevList
		}
	}
	if len(next) == len(b.prevGrouped) {
		same := true
		for area, list := range next {
			prevList, ok := b.prevGrouped[area]
			if !ok || len(prevList) != len(list) {
				same = false
				break
			}
			for i := range list {
				if list[i] != prevList[i] {
					same = false
					break
				}
			}
			if !same {
				break
			}
		}
		if same {
			return b.prevGrouped
		}
	}
	b.prevGrouped = next
	return next
}
