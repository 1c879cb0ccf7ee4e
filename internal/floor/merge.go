package floor

import (
	"sort"
	"time"
)

// PickLatestTimestamp returns whichever raw timestamp parses later. Ties and
// unparseable left-hand values favor b, the newer write.
func PickLatestTimestamp(a, b string, now time.Time) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	aMs := ParseLooseDateMs(a, now)
	bMs := ParseLooseDateMs(b, now)
	if aMs == 0 {
		return b
	}
	if bMs == 0 {
		return a
	}
	if bMs >= aMs {
		return b
	}
	return a
}

// MergeOptions controls one merge pass over normalized order rows.
type MergeOptions struct {
	// ConcatItems enables item/suborder concatenation; the hydration pass
	// sets it, the summary pass does not.
	ConcatItems bool
	// Prev carries the previous merged entry per table so the summary pass
	// never regresses a table to "items unknown" and keeps the hydrated
	// reservation record.
	Prev  map[int]*Order
	NowMs int64
}

// MergeByTable folds normalized rows into one entry per table. The fold is
// idempotent: merging a merged entry with itself changes nothing observable
// besides MergedIDs bookkeeping, which unions.
func MergeByTable(rows []*Order, opts MergeOptions) []*Order {
	byTable := make(map[int]*Order, len(rows))
	numbers := make([]int, 0, len(rows))
	for _, o := range rows {
		if o == nil || o.TableNumber <= 0 {
			continue
		}
		cur, ok := byTable[o.TableNumber]
		if !ok {
			m := o.Clone()
			m.MergedIDs = nil
			appendMergedIDs(m, o)
			m.ConfirmedSinceMs = 0
			if !opts.ConcatItems {
				if prev := opts.Prev[o.TableNumber]; prev != nil {
					if prev.Items != nil {
						m.Items = cloneItems(prev.Items)
					} else {
						m.Items = nil
					}
					if prev.Suborders != nil {
						m.Suborders = prev.Suborders
					}
					m.Reservation = prev.Reservation
				} else {
					// Table unseen so far: the summary payload carries no
					// item detail, except synthesized reservation rows
					// which are genuinely empty.
					if m.Items != nil && len(m.Items) > 0 {
						m.Items = nil
					}
				}
			}
			byTable[o.TableNumber] = m
			numbers = append(numbers, o.TableNumber)
			continue
		}
		mergeInto(cur, o, opts)
	}
	sort.Ints(numbers)
	out := make([]*Order, 0, len(numbers))
	for _, n := range numbers {
		m := byTable[n]
		if opts.ConcatItems {
			recomputePaid(m, opts.NowMs)
		}
		out = append(out, m)
	}
	return out
}

func appendMergedIDs(m, o *Order) {
	add := func(id int64) {
		for _, have := range m.MergedIDs {
			if have == id {
				return
			}
		}
		m.MergedIDs = append(m.MergedIDs, id)
	}
	if o.ID != nil {
		add(*o.ID)
	}
	for _, id := range o.MergedIDs {
		add(id)
	}
}

func mergeInto(m, o *Order, opts MergeOptions) {
	now := time.UnixMilli(opts.NowMs)
	appendMergedIDs(m, o)
	m.Total += o.Total

	// Identifiers and customer fields: first non-empty wins.
	if m.ID == nil {
		m.ID = o.ID
	}
	if m.InvoiceNumber == "" {
		m.InvoiceNumber = o.InvoiceNumber
	}
	if m.ReceiptNumber == "" {
		m.ReceiptNumber = o.ReceiptNumber
	}
	if m.OrderNumber == "" {
		m.OrderNumber = o.OrderNumber
	}
	if m.ReceiptID == nil {
		m.ReceiptID = o.ReceiptID
	}
	if m.CustomerName == "" {
		m.CustomerName = o.CustomerName
	}
	if m.CustomerPhone == "" {
		m.CustomerPhone = o.CustomerPhone
	}

	m.CreatedAt = PickLatestTimestamp(m.CreatedAt, o.CreatedAt, now)
	m.UpdatedAt = PickLatestTimestamp(m.UpdatedAt, o.UpdatedAt, now)
	m.PrepStartedAt = PickLatestTimestamp(m.PrepStartedAt, o.PrepStartedAt, now)
	m.EstimatedReadyAt = PickLatestTimestamp(m.EstimatedReadyAt, o.EstimatedReadyAt, now)
	m.KitchenDeliveredAt = PickLatestTimestamp(m.KitchenDeliveredAt, o.KitchenDeliveredAt, now)

	if m.ReservationID == nil {
		m.ReservationID = o.ReservationID
	}
	if m.ReservationDate == "" {
		m.ReservationDate = o.ReservationDate
	}
	if m.ReservationTime == "" {
		m.ReservationTime = o.ReservationTime
	}
	if m.ReservationClients == nil {
		m.ReservationClients = o.ReservationClients
	}
	if m.ReservationNotes == "" {
		m.ReservationNotes = o.ReservationNotes
	}
	if m.Reservation == nil {
		m.Reservation = o.Reservation
	}

	bothPaid := NormalizeStatus(m.Status) == "paid" && NormalizeStatus(o.Status) == "paid"
	reservationLike := IsReservationLike(m, opts.NowMs) || IsReservationLike(o, opts.NowMs)
	switch {
	case bothPaid:
		m.Status = "paid"
	case reservationLike:
		m.Status = "reserved"
	default:
		m.Status = "confirmed"
	}

	if opts.ConcatItems {
		if o.Items != nil {
			if m.Items == nil {
				m.Items = []OrderItem{}
			}
			m.Items = append(m.Items, cloneItems(o.Items)...)
		}
		m.Suborders = append(m.Suborders, o.Suborders...)
		m.ReceiptMethods = append(m.ReceiptMethods, o.ReceiptMethods...)
	}
}

// recomputePaid rechecks the paid flag once items are known. Reservation
// entries only count as paid on an explicit payment signal; everything else
// derives it from the line markers.
func recomputePaid(m *Order, nowMs int64) {
	anyUnpaid := HasUnpaidAnywhere(m)
	if IsReservationLike(m, nowMs) {
		explicitPaid := NormalizeStatus(m.PaymentStatus) == "paid" || m.IsPaid
		m.IsPaid = !anyUnpaid && explicitPaid
		return
	}
	m.IsPaid = !anyUnpaid
}

// ItemsEquivalent compares item slices by the fields the dashboard renders.
// nil (not hydrated) never equals non-nil.
func ItemsEquivalent(a, b []OrderItem) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !itemEquivalent(&a[i], &b[i]) {
			return false
		}
	}
	return true
}

func itemEquivalent(a, b *OrderItem) bool {
	if (a.ID == nil) != (b.ID == nil) {
		return false
	}
	if a.ID != nil && *a.ID != *b.ID {
		return false
	}
	aPaid := a.Paid != nil && *a.Paid
	bPaid := b.Paid != nil && *b.Paid
	return a.KitchenStatus == b.KitchenStatus &&
		aPaid == bPaid &&
		a.PaidAt == b.PaidAt &&
		a.Quantity == b.Quantity &&
		a.TotalPrice == b.TotalPrice
}

// SameMergedOrder reports whether a rebuilt table entry is observably
// identical to the previous one, so the previous pointer can be kept and
// downstream consumers skip re-rendering.
func SameMergedOrder(prev, next *Order) bool {
	if prev == nil || next == nil {
		return prev == next
	}
	return NormalizeStatus(prev.Status) == NormalizeStatus(next.Status) &&
		prev.Total == next.Total &&
		prev.IsPaid == next.IsPaid &&
		ReservationFingerprint(prev) == ReservationFingerprint(next) &&
		ItemsEquivalent(prev.Items, next.Items) &&
		subordersEquivalent(prev.Suborders, next.Suborders)
}

func subordersEquivalent(a, b []Suborder) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].KitchenStatus != b[i].KitchenStatus {
			return false
		}
		if !ItemsEquivalent(a[i].Items, b[i].Items) {
			return false
		}
	}
	return true
}
