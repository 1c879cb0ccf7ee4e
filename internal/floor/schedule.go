package floor

import (
	"fmt"
	"strings"
	"time"
)

// ReservationSchedule is the resolved date/time of a booking.
type ReservationSchedule struct {
	Date   string
	Time   string
	WhenMs int64
}

func normalizeClockTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parts := strings.Split(value, ":")
	switch len(parts) {
	case 1:
		return parts[0] + ":00:00"
	case 2:
		return parts[0] + ":" + parts[1] + ":00"
	default:
		return value
	}
}

func parseScheduleMs(date, clock string, now time.Time) int64 {
	date = strings.TrimSpace(date)
	if date == "" {
		return 0
	}
	// Dates sometimes arrive as full timestamps; keep the calendar part only.
	if idx := strings.IndexAny(date, "T "); idx > 0 {
		date = date[:idx]
	}
	clock = normalizeClockTime(clock)
	if clock == "" {
		clock = "00:00:00"
	}
	return ParseLooseDateMs(fmt.Sprintf("%sT%s", date, clock), now)
}

// ScheduleFromOrder resolves the reservation schedule attached to an order,
// preferring the joined reservation record over the flattened fields.
func ScheduleFromOrder(o *Order, now time.Time) (ReservationSchedule, bool) {
	if o == nil {
		return ReservationSchedule{}, false
	}
	date, clock := o.ReservationDate, o.ReservationTime
	if o.Reservation != nil {
		if o.Reservation.ReservationDate != "" {
			date = o.Reservation.ReservationDate
		}
		if o.Reservation.ReservationTime != "" {
			clock = o.Reservation.ReservationTime
		}
	}
	when := parseScheduleMs(date, clock, now)
	if when == 0 {
		return ReservationSchedule{}, false
	}
	return ReservationSchedule{Date: date, Time: normalizeClockTime(clock), WhenMs: when}, true
}

// ScheduleFromReservation resolves a standalone reservation's schedule.
func ScheduleFromReservation(r *Reservation, now time.Time) (ReservationSchedule, bool) {
	if r == nil {
		return ReservationSchedule{}, false
	}
	when := parseScheduleMs(r.ReservationDate, r.ReservationTime, now)
	if when == 0 {
		return ReservationSchedule{}, false
	}
	return ReservationSchedule{
		Date:   r.ReservationDate,
		Time:   normalizeClockTime(r.ReservationTime),
		WhenMs: when,
	}, true
}

// IsReservationDue reports whether the booking's scheduled time has arrived.
// An order with a reservation marker but no parseable schedule counts as due;
// a walk-in converted from a booking should hold the table immediately.
func IsReservationDue(o *Order, nowMs int64) bool {
	sched, ok := ScheduleFromOrder(o, time.UnixMilli(nowMs))
	if !ok {
		return true
	}
	return nowMs >= sched.WhenMs
}

// IsEarlyReservationClose reports whether closing this order now would happen
// before the booked time, which the dashboard flags for confirmation.
func IsEarlyReservationClose(o *Order, nowMs int64) bool {
	sched, ok := ScheduleFromOrder(o, time.UnixMilli(nowMs))
	if !ok {
		return false
	}
	return nowMs < sched.WhenMs
}

// ReservationFingerprint summarizes the reservation-relevant fields of an
// order so change detection can compare them in one shot.
func ReservationFingerprint(o *Order) string {
	if o == nil || !HasReservationSignal(o) {
		return ""
	}
	clients := ""
	if o.ReservationClients != nil {
		clients = fmt.Sprintf("%d", *o.ReservationClients)
	}
	resID := ""
	if o.ReservationID != nil {
		resID = fmt.Sprintf("%d", *o.ReservationID)
	}
	return strings.Join([]string{
		NormalizeStatus(o.Status),
		strings.ToLower(o.OrderType),
		resID,
		o.ReservationDate,
		normalizeClockTime(o.ReservationTime),
		clients,
		o.ReservationNotes,
	}, "|")
}
