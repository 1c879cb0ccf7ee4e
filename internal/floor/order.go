package floor

// Order is the strict internal schema for one table's kitchen/payment unit.
// Every external payload variant (snake_case or camelCase aliases) is folded
// into this shape at the store's ingestion boundary; nothing outside
// normalize.go touches raw payloads.
type Order struct {
	// ID is nil while the row only exists locally (pending creation or a
	// synthesized reservation row).
	ID          *int64 `json:"id"`
	TableNumber int    `json:"table_number"`
	// Status is one of draft|confirmed|reserved|paid|cancelled|closed.
	Status string `json:"status"`
	// KitchenStatus is the order-level kitchen workflow state when the
	// collaborator reports one; lines carry their own.
	KitchenStatus string  `json:"kitchen_status,omitempty"`
	OrderType     string  `json:"order_type,omitempty"`
	Total         float64 `json:"total"`
	PaymentStatus string  `json:"payment_status,omitempty"`
	IsPaid        bool    `json:"is_paid"`

	InvoiceNumber string `json:"invoice_number,omitempty"`
	ReceiptNumber string `json:"receipt_number,omitempty"`
	OrderNumber   string `json:"order_number,omitempty"`
	ReceiptID     *int64 `json:"receipt_id,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`

	// Items is nil until detail hydration has run for this table. A non-nil
	// empty slice means hydrated and genuinely empty; the distinction drives
	// the "effectively free" checks.
	Items     []OrderItem `json:"items"`
	Suborders []Suborder  `json:"suborders,omitempty"`

	// Timestamps stay in their raw wire form; ParseLooseDateMs interprets
	// them on demand.
	CreatedAt          string `json:"created_at,omitempty"`
	UpdatedAt          string `json:"updated_at,omitempty"`
	PrepStartedAt      string `json:"prep_started_at,omitempty"`
	EstimatedReadyAt   string `json:"estimated_ready_at,omitempty"`
	KitchenDeliveredAt string `json:"kitchen_delivered_at,omitempty"`

	ReservationID      *int64       `json:"reservation_id,omitempty"`
	ReservationDate    string       `json:"reservation_date,omitempty"`
	ReservationTime    string       `json:"reservation_time,omitempty"`
	ReservationClients *int         `json:"reservation_clients,omitempty"`
	ReservationNotes   string       `json:"reservation_notes,omitempty"`
	Reservation        *Reservation `json:"reservation,omitempty"`

	ReceiptMethods []ReceiptMethod `json:"receipt_methods,omitempty"`

	// MergedIDs unions the ids of every physical order folded into this
	// table entry.
	MergedIDs []int64 `json:"merged_ids,omitempty"`
	// ConfirmedSinceMs is the sticky confirmed-timer start; zero means no
	// timer is running for the table.
	ConfirmedSinceMs int64 `json:"confirmed_since_ms,omitempty"`
}

// OrderItem is a single order line. Paid stays a pointer because the wire
// format distinguishes "explicitly unpaid" from "no paid marker at all";
// hydration relies on that to backfill paid flags on globally paid orders.
type OrderItem struct {
	ID            *int64  `json:"id,omitempty"`
	ProductID     *int64  `json:"product_id,omitempty"`
	Name          string  `json:"name,omitempty"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price"`
	TotalPrice    float64 `json:"total_price,omitempty"`
	KitchenStatus string  `json:"kitchen_status,omitempty"`
	Paid          *bool   `json:"paid,omitempty"`
	PaidAt        string  `json:"paid_at,omitempty"`
	DiscountType  string  `json:"discount_type,omitempty"`
	DiscountValue float64 `json:"discount_value,omitempty"`
	// Extras are nested lines whose totals multiply by the parent quantity.
	Extras []OrderItem `json:"extras,omitempty"`

	PrepStartedAt          string  `json:"prep_started_at,omitempty"`
	KitchenStatusUpdatedAt string  `json:"kitchen_status_updated_at,omitempty"`
	PreparationTime        float64 `json:"preparation_time,omitempty"`
}

// Suborder groups the lines of one kitchen ticket when several tickets serve
// a single table.
type Suborder struct {
	ID            *int64      `json:"id,omitempty"`
	KitchenStatus string      `json:"kitchen_status,omitempty"`
	Items         []OrderItem `json:"items,omitempty"`
}

// Reservation is a booking created by the external reservation flow. It is
// consumed as a fallback when no live order exists for a table.
type Reservation struct {
	ID              int64  `json:"id"`
	TableNumber     int    `json:"table_number"`
	ReservationDate string `json:"reservation_date"`
	ReservationTime string `json:"reservation_time,omitempty"`
	Clients         int    `json:"reservation_clients,omitempty"`
	Notes           string `json:"reservation_notes,omitempty"`
	OrderID         *int64 `json:"order_id,omitempty"`
	CustomerName    string `json:"customer_name,omitempty"`
	CustomerPhone   string `json:"customer_phone,omitempty"`
	Status          string `json:"status,omitempty"`
}

// ReceiptMethod is one split-payment entry on a settled receipt.
type ReceiptMethod struct {
	Method string  `json:"method"`
	Amount float64 `json:"amount"`
}

// TableConfig is the static configuration of one table on the floor plan.
type TableConfig struct {
	Number int    `json:"number"`
	Seats  int    `json:"seats,omitempty"`
	Guests *int   `json:"guests,omitempty"`
	Area   string `json:"area,omitempty"`
	Label  string `json:"label,omitempty"`
	Color  string `json:"color,omitempty"`
}

// Unpaid reports whether the item carries no paid marker: no paid_at and no
// affirmative paid flag.
func (i *OrderItem) Unpaid() bool {
	if i == nil {
		return false
	}
	if i.PaidAt != "" {
		return false
	}
	return i.Paid == nil || !*i.Paid
}

// HasPaidMarker reports whether the wire payload said anything about payment
// for this item, regardless of direction.
func (i *OrderItem) HasPaidMarker() bool {
	return i != nil && (i.PaidAt != "" || i.Paid != nil)
}

// Clone returns a deep copy of the order. The store hands out snapshots and
// never lets callers alias its internal slices.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	dup := *o
	if o.ID != nil {
		id := *o.ID
		dup.ID = &id
	}
	if o.ReceiptID != nil {
		v := *o.ReceiptID
		dup.ReceiptID = &v
	}
	if o.ReservationID != nil {
		v := *o.ReservationID
		dup.ReservationID = &v
	}
	if o.ReservationClients != nil {
		v := *o.ReservationClients
		dup.ReservationClients = &v
	}
	if o.Reservation != nil {
		r := *o.Reservation
		dup.Reservation = &r
	}
	if o.Items != nil {
		dup.Items = cloneItems(o.Items)
	}
	if o.Suborders != nil {
		dup.Suborders = make([]Suborder, len(o.Suborders))
		for i, sub := range o.Suborders {
			dup.Suborders[i] = sub
			dup.Suborders[i].Items = cloneItems(sub.Items)
		}
	}
	if o.ReceiptMethods != nil {
		dup.ReceiptMethods = append([]ReceiptMethod(nil), o.ReceiptMethods...)
	}
	if o.MergedIDs != nil {
		dup.MergedIDs = append([]int64(nil), o.MergedIDs...)
	}
	return &dup
}

func cloneItems(items []OrderItem) []OrderItem {
	if items == nil {
		return nil
	}
	dup := make([]OrderItem, len(items))
	for i, item := range items {
		dup[i] = item
		if item.Paid != nil {
			v := *item.Paid
			dup[i].Paid = &v
		}
		if item.Extras != nil {
			dup[i].Extras = cloneItems(item.Extras)
		}
	}
	return dup
}
