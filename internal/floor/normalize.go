package floor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The REST collaborator is not consistent about field naming: depending on the
// endpoint the same order arrives with snake_case or camelCase keys, numbers
// as strings, and booleans as 0/1. All of that tolerance lives here; the rest
// of the package only sees Order.

func pickString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}

func pickFloat(m map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f, true
			}
		case bool:
			if t {
				return 1, true
			}
			return 0, true
		}
	}
	return 0, false
}

func pickInt(m map[string]interface{}, keys ...string) (int, bool) {
	f, ok := pickFloat(m, keys...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func pickInt64Ptr(m map[string]interface{}, keys ...string) *int64 {
	f, ok := pickFloat(m, keys...)
	if !ok {
		return nil
	}
	v := int64(f)
	return &v
}

func pickBool(m map[string]interface{}, keys ...string) (bool, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case bool:
			return t, true
		case float64:
			return t != 0, true
		case string:
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "true", "1", "yes":
				return true, true
			case "false", "0", "no", "":
				return false, true
			}
		}
	}
	return false, false
}

func pickMapSlice(m map[string]interface{}, keys ...string) ([]map[string]interface{}, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		arr, ok := v.([]interface{})
		if !ok {
			continue
		}
		out := make([]map[string]interface{}, 0, len(arr))
		for _, el := range arr {
			if em, ok := el.(map[string]interface{}); ok {
				out = append(out, em)
			}
		}
		return out, true
	}
	return nil, false
}

// NormalizeOrder folds one raw order payload into the internal schema. Items
// stays nil when the payload did not include an items array at all.
func NormalizeOrder(raw map[string]interface{}) *Order {
	if raw == nil {
		return nil
	}
	o := &Order{
		ID:            pickInt64Ptr(raw, "id", "order_id", "orderId"),
		Status:        strings.ToLower(pickString(raw, "status")),
		KitchenStatus: strings.ToLower(pickString(raw, "kitchen_status", "kitchenStatus")),
		OrderType:     strings.ToLower(pickString(raw, "order_type", "orderType", "type")),
		PaymentStatus: strings.ToLower(pickString(raw, "payment_status", "paymentStatus")),
		InvoiceNumber: pickString(raw, "invoice_number", "invoiceNumber"),
		ReceiptNumber: pickString(raw, "receipt_number", "receiptNumber"),
		OrderNumber:   pickString(raw, "order_number", "orderNumber"),
		ReceiptID:     pickInt64Ptr(raw, "receipt_id", "receiptId"),
		CustomerName:  pickString(raw, "customer_name", "customerName"),
		CustomerPhone: pickString(raw, "customer_phone", "customerPhone"),

		CreatedAt:          pickString(raw, "created_at", "createdAt"),
		UpdatedAt:          pickString(raw, "updated_at", "updatedAt"),
		PrepStartedAt:      pickString(raw, "prep_started_at", "prepStartedAt"),
		EstimatedReadyAt:   pickString(raw, "estimated_ready_at", "estimatedReadyAt"),
		KitchenDeliveredAt: pickString(raw, "kitchen_delivered_at", "kitchenDeliveredAt"),

		ReservationID:    pickInt64Ptr(raw, "reservation_id", "reservationId"),
		ReservationDate:  pickString(raw, "reservation_date", "reservationDate"),
		ReservationTime:  pickString(raw, "reservation_time", "reservationTime"),
		ReservationNotes: pickString(raw, "reservation_notes", "reservationNotes"),
	}
	if n, ok := pickInt(raw, "table_number", "tableNumber", "table"); ok {
		o.TableNumber = n
	}
	if f, ok := pickFloat(raw, "total", "total_amount", "totalAmount", "amount"); ok {
		o.Total = f
	}
	if b, ok := pickBool(raw, "is_paid", "isPaid"); ok {
		o.IsPaid = b
	}
	if n, ok := pickInt(raw, "reservation_clients", "reservationClients"); ok {
		v := n
		o.ReservationClients = &v
	}
	if rows, ok := pickMapSlice(raw, "items", "order_items", "orderItems"); ok {
		items := make([]OrderItem, 0, len(rows))
		for _, row := range rows {
			items = append(items, normalizeItem(row))
		}
		o.Items = items
	}
	if rows, ok := pickMapSlice(raw, "suborders", "sub_orders", "subOrders"); ok {
		for _, row := range rows {
			sub := Suborder{
				ID:            pickInt64Ptr(row, "id"),
				KitchenStatus: strings.ToLower(pickString(row, "kitchen_status", "kitchenStatus")),
			}
			if itemRows, ok := pickMapSlice(row, "items"); ok {
				sub.Items = make([]OrderItem, 0, len(itemRows))
				for _, ir := range itemRows {
					sub.Items = append(sub.Items, normalizeItem(ir))
				}
			}
			o.Suborders = append(o.Suborders, sub)
		}
	}
	if rows, ok := pickMapSlice(raw, "receipt_methods", "receiptMethods"); ok {
		for _, row := range rows {
			rm := ReceiptMethod{Method: pickString(row, "method", "payment_method", "paymentMethod")}
			rm.Amount, _ = pickFloat(row, "amount", "total")
			o.ReceiptMethods = append(o.ReceiptMethods, rm)
		}
	}
	if resRaw, ok := raw["reservation"].(map[string]interface{}); ok {
		o.Reservation = NormalizeReservation(resRaw)
	}
	return o
}

func normalizeItem(raw map[string]interface{}) OrderItem {
	item := OrderItem{
		ID:            pickInt64Ptr(raw, "id", "item_id", "itemId"),
		ProductID:     pickInt64Ptr(raw, "product_id", "productId"),
		Name:          pickString(raw, "name", "product_name", "productName"),
		KitchenStatus: strings.ToLower(pickString(raw, "kitchen_status", "kitchenStatus")),
		PaidAt:        pickString(raw, "paid_at", "paidAt"),
		DiscountType:  pickString(raw, "discount_type", "discountType"),

		PrepStartedAt:          pickString(raw, "prep_started_at", "prepStartedAt"),
		KitchenStatusUpdatedAt: pickString(raw, "kitchen_status_updated_at", "kitchenStatusUpdatedAt"),
	}
	item.Quantity, _ = pickInt(raw, "quantity", "qty")
	item.Price, _ = pickFloat(raw, "price", "unit_price", "unitPrice")
	item.TotalPrice, _ = pickFloat(raw, "total_price", "totalPrice")
	item.DiscountValue, _ = pickFloat(raw, "discount_value", "discountValue")
	item.PreparationTime, _ = pickFloat(raw, "preparation_time", "preparationTime", "prep_minutes", "prepMinutes")
	if b, ok := pickBool(raw, "paid"); ok {
		item.Paid = &b
	}
	if rows, ok := pickMapSlice(raw, "extras"); ok {
		item.Extras = make([]OrderItem, 0, len(rows))
		for _, row := range rows {
			item.Extras = append(item.Extras, normalizeItem(row))
		}
	}
	return item
}

// NormalizeReservation folds one raw reservation payload.
func NormalizeReservation(raw map[string]interface{}) *Reservation {
	if raw == nil {
		return nil
	}
	r := &Reservation{
		ReservationDate: pickString(raw, "reservation_date", "reservationDate", "date"),
		ReservationTime: pickString(raw, "reservation_time", "reservationTime", "time"),
		Notes:           pickString(raw, "reservation_notes", "reservationNotes", "notes"),
		OrderID:         pickInt64Ptr(raw, "order_id", "orderId"),
		CustomerName:    pickString(raw, "customer_name", "customerName"),
		CustomerPhone:   pickString(raw, "customer_phone", "customerPhone"),
		Status:          strings.ToLower(pickString(raw, "status")),
	}
	if id := pickInt64Ptr(raw, "id", "reservation_id", "reservationId"); id != nil {
		r.ID = *id
	}
	r.TableNumber, _ = pickInt(raw, "table_number", "tableNumber", "table")
	r.Clients, _ = pickInt(raw, "reservation_clients", "reservationClients", "clients")
	return r
}

// NormalizeTableConfig folds one raw table-config payload.
func NormalizeTableConfig(raw map[string]interface{}) TableConfig {
	tc := TableConfig{
		Area:  pickString(raw, "area", "zone"),
		Label: pickString(raw, "label", "name"),
		Color: pickString(raw, "color"),
	}
	tc.Number, _ = pickInt(raw, "number", "table_number", "tableNumber", "id")
	tc.Seats, _ = pickInt(raw, "seats", "capacity")
	if n, ok := pickInt(raw, "guests"); ok {
		v := n
		tc.Guests = &v
	}
	return tc
}

var zoneSuffixRe = regexp.MustCompile(`(?i)(z|[+-]\d{2}:?\d{2})$`)

var looseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseWithLayouts(value string) (time.Time, bool) {
	for _, layout := range looseLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseLooseDateMs interprets a timestamp whose timezone discipline is
// unknown: some collaborators emit UTC with a zone suffix, others emit local
// wall-clock time with a bogus suffix. Both readings are computed and the one
// closer to the current clock wins.
func ParseLooseDateMs(value string, now time.Time) int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	var asGiven, asLocal int64
	if t, ok := parseWithLayouts(value); ok {
		asGiven = t.UnixMilli()
	}
	if stripped := strings.TrimSpace(zoneSuffixRe.ReplaceAllString(value, "")); stripped != value {
		if t, ok := parseWithLayouts(stripped); ok {
			asLocal = t.UnixMilli()
		}
	}
	if asGiven != 0 && asLocal != 0 {
		nowMs := now.UnixMilli()
		if absInt64(nowMs-asGiven) <= absInt64(nowMs-asLocal) {
			return asGiven
		}
		return asLocal
	}
	if asGiven != 0 {
		return asGiven
	}
	return asLocal
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// FormatLocalYmd renders a local-calendar YYYY-MM-DD for reservation date
// comparisons.
func FormatLocalYmd(t time.Time) string {
	return t.Local().Format("2006-01-02")
}
