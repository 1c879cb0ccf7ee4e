package floor

import (
	"testing"
	"time"
)

func confirmedOrder(id int64, table int, total float64) *Order {
	return &Order{
		ID:          int64Ptr(id),
		TableNumber: table,
		Status:      "confirmed",
		Total:       total,
	}
}

func TestMergeByTableFoldsOrdersForOneTable(t *testing.T) {
	nowMs := testNow.UnixMilli()
	rows := []*Order{
		confirmedOrder(101, 5, 30),
		confirmedOrder(102, 5, 25),
		confirmedOrder(200, 7, 10),
	}

	merged := MergeByTable(rows, MergeOptions{NowMs: nowMs})

	if len(merged) != 2 {
		t.Fatalf("MergeByTable() returned %d entries, want 2", len(merged))
	}
	five := merged[0]
	if five.TableNumber != 5 {
		t.Fatalf("merged[0].TableNumber = %d, want 5", five.TableNumber)
	}
	if five.Total != 55 {
		t.Errorf("merged total = %v, want 55", five.Total)
	}
	if len(five.MergedIDs) != 2 || five.MergedIDs[0] != 101 || five.MergedIDs[1] != 102 {
		t.Errorf("MergedIDs = %v, want [101 102]", five.MergedIDs)
	}
	if five.ID == nil || *five.ID != 101 {
		t.Errorf("merged ID = %v, want 101", five.ID)
	}
	if five.Status != "confirmed" {
		t.Errorf("merged status = %q, want %q", five.Status, "confirmed")
	}
	if merged[1].TableNumber != 7 {
		t.Errorf("merged[1].TableNumber = %d, want 7", merged[1].TableNumber)
	}
}

func TestMergeByTableIsIdempotent(t *testing.T) {
	nowMs := testNow.UnixMilli()
	rows := []*Order{
		confirmedOrder(101, 5, 30),
		confirmedOrder(102, 5, 25),
	}
	once := MergeByTable(rows, MergeOptions{NowMs: nowMs})
	twice := MergeByTable(once, MergeOptions{NowMs: nowMs})

	if len(twice) != 1 {
		t.Fatalf("re-merge returned %d entries, want 1", len(twice))
	}
	a, b := once[0], twice[0]
	if a.Total != b.Total {
		t.Errorf("re-merge total = %v, want %v", b.Total, a.Total)
	}
	if a.Status != b.Status {
		t.Errorf("re-merge status = %q, want %q", b.Status, a.Status)
	}
	if len(a.MergedIDs) != len(b.MergedIDs) {
		t.Errorf("re-merge MergedIDs = %v, want %v", b.MergedIDs, a.MergedIDs)
	}
}

func TestMergeByTableStatusFold(t *testing.T) {
	nowMs := testNow.UnixMilli()
	tests := []struct {
		name string
		a, b *Order
		want string
	}{
		{
			name: "both paid stays paid",
			a:    &Order{ID: int64Ptr(1), TableNumber: 3, Status: "paid", Items: []OrderItem{}},
			b:    &Order{ID: int64Ptr(2), TableNumber: 3, Status: "paid", Items: []OrderItem{}},
			want: "paid",
		},
		{
			name: "paid plus confirmed falls to confirmed",
			a:    &Order{ID: int64Ptr(1), TableNumber: 3, Status: "paid"},
			b:    confirmedOrder(2, 3, 10),
			want: "confirmed",
		},
		{
			name: "reservation member wins over confirmed",
			a:    confirmedOrder(1, 3, 0),
			b: &Order{
				ID:              int64Ptr(2),
				TableNumber:     3,
				Status:          "reserved",
				ReservationDate: "2025-08-28",
			},
			want: "reserved",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := MergeByTable([]*Order{tt.a, tt.b}, MergeOptions{NowMs: nowMs})
			if len(merged) != 1 {
				t.Fatalf("got %d entries, want 1", len(merged))
			}
			if got := merged[0].Status; got != tt.want {
				t.Errorf("merged status = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMergeByTableSummaryPassKeepsPreviousDetail(t *testing.T) {
	nowMs := testNow.UnixMilli()
	prev := map[int]*Order{
		5: {
			ID:          int64Ptr(101),
			TableNumber: 5,
			Status:      "confirmed",
			Items:       []OrderItem{{ID: int64Ptr(1), Quantity: 2}},
			Reservation: &Reservation{ID: 9},
		},
	}
	rows := []*Order{
		confirmedOrder(101, 5, 30),
		{
			ID:          int64Ptr(300),
			TableNumber: 8,
			Status:      "confirmed",
			Total:       12,
			Items:       []OrderItem{{ID: int64Ptr(7)}},
		},
	}

	merged := MergeByTable(rows, MergeOptions{Prev: prev, NowMs: nowMs})

	if merged[0].Items == nil || len(merged[0].Items) != 1 {
		t.Errorf("known table lost hydrated items: %v", merged[0].Items)
	}
	if merged[0].Reservation == nil || merged[0].Reservation.ID != 9 {
		t.Errorf("known table lost hydrated reservation: %v", merged[0].Reservation)
	}
	if merged[1].Items != nil {
		t.Errorf("unseen table items = %v, want nil until hydration", merged[1].Items)
	}
}

func TestMergeByTableSummaryPassKeepsSynthesizedEmptyItems(t *testing.T) {
	row := &Order{
		TableNumber:     9,
		Status:          "reserved",
		OrderType:       "reservation",
		Items:           []OrderItem{},
		ReservationDate: "2025-08-28",
	}
	merged := MergeByTable([]*Order{row}, MergeOptions{NowMs: testNow.UnixMilli()})
	if merged[0].Items == nil || len(merged[0].Items) != 0 {
		t.Errorf("synthesized row items = %v, want empty non-nil", merged[0].Items)
	}
}

func TestMergeByTableHydrationConcatenatesAndRecomputesPaid(t *testing.T) {
	nowMs := testNow.UnixMilli()
	paid := true
	rows := []*Order{
		{
			ID:          int64Ptr(101),
			TableNumber: 5,
			Status:      "confirmed",
			Total:       30,
			Items:       []OrderItem{{ID: int64Ptr(1), Paid: &paid, PaidAt: "2025-08-28T11:00:00"}},
		},
		{
			ID:          int64Ptr(102),
			TableNumber: 5,
			Status:      "confirmed",
			Total:       25,
			Items:       []OrderItem{{ID: int64Ptr(2)}},
		},
	}
	merged := MergeByTable(rows, MergeOptions{ConcatItems: true, NowMs: nowMs})
	if len(merged[0].Items) != 2 {
		t.Fatalf("merged items = %d, want 2", len(merged[0].Items))
	}
	if merged[0].IsPaid {
		t.Errorf("IsPaid = true with an unpaid line, want false")
	}

	for i := range rows[1].Items {
		rows[1].Items[i].Paid = &paid
	}
	merged = MergeByTable(rows, MergeOptions{ConcatItems: true, NowMs: nowMs})
	if !merged[0].IsPaid {
		t.Errorf("IsPaid = false with every line paid, want true")
	}
}

func TestRecomputePaidReservationNeedsExplicitSignal(t *testing.T) {
	nowMs := testNow.UnixMilli()
	row := &Order{
		TableNumber:     9,
		Status:          "reserved",
		OrderType:       "reservation",
		Items:           []OrderItem{},
		ReservationDate: "2025-08-28",
	}
	merged := MergeByTable([]*Order{row}, MergeOptions{ConcatItems: true, NowMs: nowMs})
	if merged[0].IsPaid {
		t.Errorf("reservation with no payment signal marked paid")
	}

	row.PaymentStatus = "paid"
	merged = MergeByTable([]*Order{row}, MergeOptions{ConcatItems: true, NowMs: nowMs})
	if !merged[0].IsPaid {
		t.Errorf("reservation with explicit payment signal not marked paid")
	}
}

func TestPickLatestTimestamp(t *testing.T) {
	now := testNow
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{"empty left takes right", "", "2025-08-28T10:00:00", "2025-08-28T10:00:00"},
		{"empty right takes left", "2025-08-28T10:00:00", "", "2025-08-28T10:00:00"},
		{"later right wins", "2025-08-28T10:00:00", "2025-08-28T11:00:00", "2025-08-28T11:00:00"},
		{"later left wins", "2025-08-28T11:00:00", "2025-08-28T10:00:00", "2025-08-28T11:00:00"},
		{"tie favors right", "2025-08-28T10:00:00", "2025-08-28 10:00:00", "2025-08-28 10:00:00"},
		{"unparseable left takes right", "not-a-date", "2025-08-28T10:00:00", "2025-08-28T10:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PickLatestTimestamp(tt.a, tt.b, now); got != tt.want {
				t.Errorf("PickLatestTimestamp(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestItemsEquivalent(t *testing.T) {
	paid := true
	tests := []struct {
		name string
		a, b []OrderItem
		want bool
	}{
		{"nil never equals hydrated empty", nil, []OrderItem{}, false},
		{"both nil", nil, nil, true},
		{"equal content", []OrderItem{{ID: int64Ptr(1), Quantity: 2, TotalPrice: 10}}, []OrderItem{{ID: int64Ptr(1), Quantity: 2, TotalPrice: 10}}, true},
		{"quantity differs", []OrderItem{{ID: int64Ptr(1), Quantity: 2}}, []OrderItem{{ID: int64Ptr(1), Quantity: 3}}, false},
		{"paid marker differs", []OrderItem{{ID: int64Ptr(1), Paid: &paid}}, []OrderItem{{ID: int64Ptr(1)}}, false},
		{"kitchen status differs", []OrderItem{{ID: int64Ptr(1), KitchenStatus: "ready"}}, []OrderItem{{ID: int64Ptr(1), KitchenStatus: "pending"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ItemsEquivalent(tt.a, tt.b); got != tt.want {
				t.Errorf("ItemsEquivalent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSameMergedOrder(t *testing.T) {
	base := func() *Order {
		return &Order{
			ID:          int64Ptr(101),
			TableNumber: 5,
			Status:      "confirmed",
			Total:       30,
			Items:       []OrderItem{{ID: int64Ptr(1), Quantity: 1, TotalPrice: 30}},
		}
	}

	if !SameMergedOrder(base(), base()) {
		t.Errorf("identical entries reported as different")
	}

	changed := base()
	changed.Total = 31
	if SameMergedOrder(base(), changed) {
		t.Errorf("total change not detected")
	}

	changed = base()
	changed.ReservationDate = "2025-08-29"
	if SameMergedOrder(base(), changed) {
		t.Errorf("reservation fingerprint change not detected")
	}

	if !SameMergedOrder(nil, nil) {
		t.Errorf("SameMergedOrder(nil, nil) = false, want true")
	}
	if SameMergedOrder(base(), nil) {
		t.Errorf("SameMergedOrder(entry, nil) = true, want false")
	}
}

func TestMergeByTableResetsConfirmedTimer(t *testing.T) {
	row := confirmedOrder(101, 5, 30)
	row.ConfirmedSinceMs = testNow.Add(-time.Hour).UnixMilli()
	merged := MergeByTable([]*Order{row}, MergeOptions{NowMs: testNow.UnixMilli()})
	if merged[0].ConfirmedSinceMs != 0 {
		t.Errorf("merged ConfirmedSinceMs = %d, want 0 until timer resolution", merged[0].ConfirmedSinceMs)
	}
}
