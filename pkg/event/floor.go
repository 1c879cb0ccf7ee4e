package event

import "time"

const (
	// FloorOrdersTopic carries order lifecycle events consumed by the floor
	// dashboard. Every payload includes an event_type discriminator.
	FloorOrdersTopic = "pos.orders.floor"

	// EventOrdersUpdated signals that the open-order set changed in some
	// unspecified way; consumers should schedule a refresh.
	EventOrdersUpdated = "orders_updated"
	// EventOrderConfirmed identifies a table order entering the confirmed state.
	EventOrderConfirmed = "order_confirmed"
	// EventPaymentMade identifies a payment settling a table order.
	EventPaymentMade = "payment_made"
	// EventOrderCancelled identifies a cancelled table order.
	EventOrderCancelled = "order_cancelled"
	// EventOrderClosed identifies a closed table order; the table is released.
	EventOrderClosed = "order_closed"
)

// OrderStatusEvent is the payload shape shared by all floor order events.
// TableNumber is always present; OrderID may be absent for rows that were
// never persisted (for example phone orders cancelled before creation).
// Patch carries status-specific extra fields to apply on top of the local row.
type OrderStatusEvent struct {
	EventType   string                 `json:"event_type"`
	TableNumber int                    `json:"table_number"`
	OrderID     *int64                 `json:"order_id,omitempty"`
	Status      string                 `json:"status,omitempty"`
	Patch       map[string]interface{} `json:"patch,omitempty"`
	OccurredAt  time.Time              `json:"occurred_at"`
}

// StatusForEvent maps an event type to the order status a local patch should
// apply. Unknown event types map to an empty status and are ignored upstream.
func StatusForEvent(eventType string) string {
	switch eventType {
	case EventOrderConfirmed:
		return "confirmed"
	case EventPaymentMade:
		return "paid"
	case EventOrderCancelled:
		return "cancelled"
	case EventOrderClosed:
		return "closed"
	default:
		return ""
	}
}
