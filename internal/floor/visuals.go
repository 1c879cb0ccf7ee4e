package floor

import (
	"strings"
	"time"
)

// Table colors rendered by the dashboard. The invariant the floor staff rely
// on: any table with at least one unpaid item shows red, no matter what the
// order status says.
const (
	ColorFree      = "gray"
	ColorUnpaid    = "red"
	ColorConfirmed = "yellow"
	ColorPaid      = "green"
	ColorReserved  = "orange"
)

// NormalizeStatus lowercases a status and maps the legacy "occupied" alias
// onto "confirmed".
func NormalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "occupied" {
		return "confirmed"
	}
	return s
}

// NormalizedNonReservationStatus demotes a "reserved" status with no backing
// reservation marker to "confirmed"; a row can only claim reserved when
// something reservation-shaped supports it.
func NormalizedNonReservationStatus(o *Order) string {
	s := NormalizeStatus(o.Status)
	if s == "reserved" && !HasReservationSignal(o) {
		return "confirmed"
	}
	return s
}

// IsCancelledStatus tolerates both spellings the collaborators emit.
func IsCancelledStatus(status string) bool {
	s := NormalizeStatus(status)
	return s == "cancelled" || s == "canceled"
}

// IsOrderPaid reports whether any of the three payment signals is set.
func IsOrderPaid(o *Order) bool {
	if o == nil {
		return false
	}
	return NormalizeStatus(o.Status) == "paid" ||
		NormalizeStatus(o.PaymentStatus) == "paid" ||
		o.IsPaid
}

// HasUnpaidAnywhere scans direct items and every suborder's items for a line
// with no paid marker.
func HasUnpaidAnywhere(o *Order) bool {
	if o == nil {
		return false
	}
	for i := range o.Items {
		if o.Items[i].Unpaid() {
			return true
		}
	}
	for _, sub := range o.Suborders {
		for i := range sub.Items {
			if sub.Items[i].Unpaid() {
				return true
			}
		}
	}
	return false
}

// IsOrderFullyPaid holds when a payment signal is set and no line anywhere
// is unpaid.
func IsOrderFullyPaid(o *Order) bool {
	return IsOrderPaid(o) && !HasUnpaidAnywhere(o)
}

// HasReservationSignal reports whether the order carries a concrete
// reservation marker: a date, a time or a reservation id, flattened or on the
// joined record. Status alone is not a signal; a bare "reserved" status with
// nothing behind it gets demoted instead.
func HasReservationSignal(o *Order) bool {
	if o == nil {
		return false
	}
	if o.ReservationDate != "" || o.ReservationTime != "" || o.ReservationID != nil {
		return true
	}
	if r := o.Reservation; r != nil {
		return r.ReservationDate != "" || r.ReservationTime != "" || r.ID != 0
	}
	return false
}

// IsEffectivelyFree decides whether an order, despite existing, should leave
// the table looking free:
//
//   - nil order, closed, cancelled, draft: free
//   - items hydrated: free only when empty and total is non-positive
//   - items unknown: free when total is non-positive
//   - an otherwise idle order with a reservation marker stays free until the
//     scheduled time arrives, then holds the table
func IsEffectivelyFree(o *Order, nowMs int64) bool {
	if o == nil {
		return true
	}
	status := NormalizeStatus(o.Status)
	if status == "closed" || IsCancelledStatus(status) {
		return true
	}
	idle := isIdleRow(o)
	if HasReservationSignal(o) {
		if !idle {
			return false
		}
		return !IsReservationDue(o, nowMs)
	}
	return idle
}

// IsReservationLike reports whether a row should be treated as a reservation
// entry: a reservation marker plus either explicit reserved state, or an
// otherwise idle row whose booked time has arrived. Active orders keep their
// real status even when linked to a booking.
func IsReservationLike(o *Order, nowMs int64) bool {
	if o == nil || !HasReservationSignal(o) {
		return false
	}
	if NormalizeStatus(o.Status) == "reserved" || strings.ToLower(o.OrderType) == "reservation" {
		return true
	}
	if !isIdleRow(o) {
		return false
	}
	return IsReservationDue(o, nowMs)
}

// isIdleRow is the activity check shared by IsEffectivelyFree and
// IsReservationLike: no known items and no outstanding total.
func isIdleRow(o *Order) bool {
	status := NormalizeStatus(o.Status)
	if status == "draft" {
		return true
	}
	if o.Items != nil {
		return len(o.Items) == 0 && o.Total <= 0
	}
	return o.Total <= 0
}

// IsDelayed reports whether a confirmed order with known items has been
// waiting longer than a minute.
func IsDelayed(o *Order, nowMs int64) bool {
	if o == nil || NormalizeStatus(o.Status) != "confirmed" {
		return false
	}
	if o.Items == nil || len(o.Items) == 0 {
		return false
	}
	if o.ConfirmedSinceMs <= 0 {
		return false
	}
	return nowMs-o.ConfirmedSinceMs > time.Minute.Milliseconds()
}

// TableColor derives the dashboard color for a table's current order.
func TableColor(o *Order, nowMs int64) string {
	if o == nil {
		return ColorFree
	}
	if IsReservationLike(o, nowMs) {
		if IsOrderFullyPaid(o) {
			return ColorPaid
		}
		return ColorReserved
	}
	if IsOrderFullyPaid(o) {
		return ColorPaid
	}
	status := NormalizeStatus(o.Status)
	if o.Items == nil {
		// Items not hydrated yet: judge by total and status alone.
		if o.Total <= 0 {
			return ColorFree
		}
		if status == "confirmed" {
			return ColorUnpaid
		}
		return ColorFree
	}
	if len(o.Items) == 0 {
		return ColorFree
	}
	if HasUnpaidAnywhere(o) {
		return ColorUnpaid
	}
	if status == "confirmed" {
		return ColorConfirmed
	}
	return ColorFree
}

func itemLineTotal(item *OrderItem) float64 {
	total := item.TotalPrice
	if total == 0 {
		total = item.Price * float64(item.Quantity)
	}
	qty := item.Quantity
	if qty <= 0 {
		qty = 1
	}
	for i := range item.Extras {
		ex := &item.Extras[i]
		exTotal := ex.TotalPrice
		if exTotal == 0 {
			exTotal = ex.Price * float64(ex.Quantity)
		}
		total += exTotal * float64(qty)
	}
	return total
}

// UnpaidTotal sums the line totals of unpaid items, extras multiplied by the
// parent quantity.
func UnpaidTotal(o *Order) float64 {
	if o == nil {
		return 0
	}
	var sum float64
	for i := range o.Items {
		if o.Items[i].Unpaid() {
			sum += itemLineTotal(&o.Items[i])
		}
	}
	for _, sub := range o.Suborders {
		for i := range sub.Items {
			if sub.Items[i].Unpaid() {
				sum += itemLineTotal(&sub.Items[i])
			}
		}
	}
	return sum
}

// DisplayTotal is the amount shown on the table card: outstanding unpaid
// value while anything is open, the settled receipt total once everything is
// paid, the raw order total as a last resort.
func DisplayTotal(o *Order) float64 {
	if o == nil {
		return 0
	}
	if unpaid := UnpaidTotal(o); unpaid > 0 {
		return unpaid
	}
	if len(o.ReceiptMethods) > 0 {
		var sum float64
		for _, rm := range o.ReceiptMethods {
			sum += rm.Amount
		}
		if sum > 0 {
			return sum
		}
	}
	return o.Total
}
