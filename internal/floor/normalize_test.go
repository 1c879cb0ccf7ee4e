package floor

import (
	"testing"
	"time"
)

func TestNormalizeOrderFieldAliases(t *testing.T) {
	raw := map[string]interface{}{
		"orderId":       float64(42),
		"tableNumber":   "7",
		"status":        "Confirmed",
		"kitchenStatus": "Started",
		"orderType":     "Dine-In",
		"totalAmount":   "55.5",
		"isPaid":        float64(1),
		"customerName":  "Ada",
		"updatedAt":     "2025-08-28T11:00:00",
		"reservationId": float64(9),
	}
	o := NormalizeOrder(raw)
	if o == nil {
		t.Fatalf("NormalizeOrder() = nil")
	}
	if o.ID == nil || *o.ID != 42 {
		t.Errorf("ID = %v, want 42", o.ID)
	}
	if o.TableNumber != 7 {
		t.Errorf("TableNumber = %d, want 7", o.TableNumber)
	}
	if o.Status != "confirmed" {
		t.Errorf("Status = %q, want %q", o.Status, "confirmed")
	}
	if o.KitchenStatus != "started" {
		t.Errorf("KitchenStatus = %q, want %q", o.KitchenStatus, "started")
	}
	if o.OrderType != "dine-in" {
		t.Errorf("OrderType = %q, want %q", o.OrderType, "dine-in")
	}
	if o.Total != 55.5 {
		t.Errorf("Total = %v, want 55.5", o.Total)
	}
	if !o.IsPaid {
		t.Errorf("IsPaid = false, want true")
	}
	if o.CustomerName != "Ada" {
		t.Errorf("CustomerName = %q, want %q", o.CustomerName, "Ada")
	}
	if o.ReservationID == nil || *o.ReservationID != 9 {
		t.Errorf("ReservationID = %v, want 9", o.ReservationID)
	}
}

func TestNormalizeOrderItemsNilUntilPresent(t *testing.T) {
	o := NormalizeOrder(map[string]interface{}{"id": float64(1), "table_number": float64(3)})
	if o.Items != nil {
		t.Errorf("Items = %v, want nil when payload carries no items array", o.Items)
	}

	o = NormalizeOrder(map[string]interface{}{
		"id":           float64(1),
		"table_number": float64(3),
		"items":        []interface{}{},
	})
	if o.Items == nil || len(o.Items) != 0 {
		t.Errorf("Items = %v, want empty non-nil for an empty array", o.Items)
	}
}

func TestNormalizeItemPaidMarker(t *testing.T) {
	item := normalizeItem(map[string]interface{}{"id": float64(1), "quantity": float64(2)})
	if item.Paid != nil {
		t.Errorf("Paid = %v, want nil when the payload says nothing", item.Paid)
	}

	item = normalizeItem(map[string]interface{}{"id": float64(1), "paid": float64(0)})
	if item.Paid == nil || *item.Paid {
		t.Errorf("Paid = %v, want explicit false", item.Paid)
	}
	if !item.Unpaid() {
		t.Errorf("Unpaid() = false for an explicitly unpaid item")
	}

	item = normalizeItem(map[string]interface{}{"id": float64(1), "paid_at": "2025-08-28T11:00:00"})
	if item.Unpaid() {
		t.Errorf("Unpaid() = true for an item with paid_at")
	}
}

func TestNormalizeOrderNestedExtras(t *testing.T) {
	o := NormalizeOrder(map[string]interface{}{
		"id":           float64(1),
		"table_number": float64(3),
		"items": []interface{}{
			map[string]interface{}{
				"id":       float64(10),
				"quantity": float64(2),
				"price":    float64(12),
				"extras": []interface{}{
					map[string]interface{}{"name": "cheese", "price": float64(2), "quantity": float64(1)},
				},
			},
		},
	})
	if len(o.Items) != 1 || len(o.Items[0].Extras) != 1 {
		t.Fatalf("items/extras not decoded: %+v", o.Items)
	}
	if o.Items[0].Extras[0].Name != "cheese" {
		t.Errorf("extra name = %q, want %q", o.Items[0].Extras[0].Name, "cheese")
	}
}

func TestNormalizeReservation(t *testing.T) {
	r := NormalizeReservation(map[string]interface{}{
		"reservation_id": float64(4),
		"table":          float64(9),
		"date":           "2025-08-28",
		"time":           "19:30",
		"clients":        "4",
		"orderId":        float64(77),
	})
	if r.ID != 4 {
		t.Errorf("ID = %d, want 4", r.ID)
	}
	if r.TableNumber != 9 {
		t.Errorf("TableNumber = %d, want 9", r.TableNumber)
	}
	if r.ReservationDate != "2025-08-28" || r.ReservationTime != "19:30" {
		t.Errorf("schedule = %q %q", r.ReservationDate, r.ReservationTime)
	}
	if r.Clients != 4 {
		t.Errorf("Clients = %d, want 4", r.Clients)
	}
	if r.OrderID == nil || *r.OrderID != 77 {
		t.Errorf("OrderID = %v, want 77", r.OrderID)
	}
}

func TestParseLooseDateMs(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if got := ParseLooseDateMs("", testNow); got != 0 {
			t.Errorf("ParseLooseDateMs(\"\") = %d, want 0", got)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if got := ParseLooseDateMs("not a date", testNow); got != 0 {
			t.Errorf("ParseLooseDateMs(garbage) = %d, want 0", got)
		}
	})

	t.Run("zoneless parses as local wall clock", func(t *testing.T) {
		want := time.Date(2025, 8, 28, 11, 30, 0, 0, time.Local).UnixMilli()
		if got := ParseLooseDateMs("2025-08-28 11:30:00", testNow); got != want {
			t.Errorf("ParseLooseDateMs() = %d, want %d", got, want)
		}
	})

	t.Run("date only is local midnight", func(t *testing.T) {
		want := time.Date(2025, 8, 28, 0, 0, 0, 0, time.Local).UnixMilli()
		if got := ParseLooseDateMs("2025-08-28", testNow); got != want {
			t.Errorf("ParseLooseDateMs() = %d, want %d", got, want)
		}
	})

	t.Run("suffixed value picks the reading closer to now", func(t *testing.T) {
		// A collaborator stamping local wall-clock time with a bogus Z: the
		// local reading sits next to now, so it wins; when the zone is
		// honest both readings coincide and the choice is moot.
		now := time.Date(2025, 8, 28, 10, 0, 5, 0, time.Local)
		want := time.Date(2025, 8, 28, 10, 0, 0, 0, time.Local).UnixMilli()
		given := time.Date(2025, 8, 28, 10, 0, 0, 0, time.UTC).UnixMilli()
		got := ParseLooseDateMs("2025-08-28T10:00:00Z", now)
		if absInt64(now.UnixMilli()-given) < absInt64(now.UnixMilli()-want) {
			want = given
		}
		if got != want {
			t.Errorf("ParseLooseDateMs() = %d, want %d", got, want)
		}
	})
}

func TestFormatLocalYmd(t *testing.T) {
	if got := FormatLocalYmd(testNow); got != "2025-08-28" {
		t.Errorf("FormatLocalYmd() = %q, want %q", got, "2025-08-28")
	}
}
