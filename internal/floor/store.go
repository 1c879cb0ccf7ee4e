package floor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
)

// OrdersData is the slice of the REST collaborator the store consumes.
// Implementations return loosely-typed rows; normalization happens here.
type OrdersData interface {
	ListOpenOrders(ctx context.Context) ([]map[string]interface{}, error)
	ListReservations(ctx context.Context, startDate string) ([]map[string]interface{}, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]map[string]interface{}, error)
	GetOrderReservation(ctx context.Context, orderID int64) (map[string]interface{}, error)
}

// RefreshOptions tunes one refresh pass.
type RefreshOptions struct {
	// SkipHydration stops after the summary snapshot; item detail keeps
	// whatever was known before.
	SkipHydration bool
}

// Snapshot is an immutable view of the store. Entries are never mutated after
// publication, so holding on to them across refreshes is safe and pointer
// equality doubles as a change check.
type Snapshot struct {
	Orders       []*Order
	Reservations []*Reservation
	Generation   int64
	Hydrated     bool
}

// StoreOptions configures a Store. Zero values get sensible defaults: a
// memory cache, a noop logger, the wall clock and six hydration workers.
type StoreOptions struct {
	Data         OrdersData
	Cache        TenantScopedCache
	Timers       *TimerTracker
	Tenant       string
	Logger       aqm.Logger
	Now          func() time.Time
	HydrateLimit int
	// OnChange runs after every published snapshot, outside the store lock.
	OnChange func(Snapshot)
}

// Store owns the merged one-entry-per-table order list. It is the single
// writer; every read goes through Snapshot. Concurrent refreshes are
// serialized by a generation counter: any pass that loses the race publishes
// nothing.
type Store struct {
	data         OrdersData
	cache        TenantScopedCache
	timers       *TimerTracker
	tenant       string
	logger       aqm.Logger
	now          func() time.Time
	hydrateLimit int
	onChange     func(Snapshot)

	mu              sync.Mutex
	orders          []*Order
	byTable         map[int]*Order
	reservations    []*Reservation
	generation      int64
	hydrated        bool
	initialLoadDone bool
	cancelInflight  context.CancelFunc
}

func NewStore(opts StoreOptions) *Store {
	if opts.Cache == nil {
		opts.Cache = NewMemoryCache()
	}
	if opts.Logger == nil {
		opts.Logger = aqm.NewNoopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HydrateLimit <= 0 {
		opts.HydrateLimit = 6
	}
	if opts.Timers == nil {
		opts.Timers = NewTimerTracker(opts.Cache, opts.Tenant, opts.Logger)
	}
	return &Store{
		data:         opts.Data,
		cache:        opts.Cache,
		timers:       opts.Timers,
		tenant:       opts.Tenant,
		logger:       opts.Logger,
		now:          opts.Now,
		hydrateLimit: opts.HydrateLimit,
		onChange:     opts.OnChange,
		byTable:      make(map[int]*Order),
	}
}

// Snapshot returns the current published state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Orders:       s.orders,
		Reservations: s.reservations,
		Generation:   s.generation,
		Hydrated:     s.hydrated,
	}
}

// OrderForTable returns the merged entry for one table, or nil.
func (s *Store) OrderForTable(tableNumber int) *Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byTable[tableNumber]
}

// Prime loads the last persisted snapshot so a restart paints the floor
// before the first fetch lands. Failures are swallowed; priming is an
// optimization, never a requirement.
func (s *Store) Prime(ctx context.Context) {
	data, err := s.cache.Read(ctx, s.tenant, CacheKeyOrders)
	if err != nil {
		s.logger.Error("cannot read cached orders", "error", err)
		return
	}
	if len(data) == 0 {
		return
	}
	var cached []*Order
	if err := json.Unmarshal(data, &cached); err != nil {
		s.logger.Error("cannot decode cached orders", "error", err)
		return
	}
	rows := cached[:0]
	for _, o := range cached {
		if o != nil && o.TableNumber > 0 {
			rows = append(rows, o)
		}
	}
	if len(rows) == 0 {
		return
	}
	s.mu.Lock()
	if len(s.orders) > 0 || s.initialLoadDone {
		s.mu.Unlock()
		return
	}
	s.publishLocked(rows, s.reservations, false)
	s.mu.Unlock()
	s.notify()
}

// publishLocked installs a new order list. Caller holds the lock.
func (s *Store) publishLocked(orders []*Order, reservations []*Reservation, hydrated bool) {
	byTable := make(map[int]*Order, len(orders))
	for _, o := range orders {
		byTable[o.TableNumber] = o
	}
	s.orders = orders
	s.byTable = byTable
	s.reservations = reservations
	s.hydrated = hydrated
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange(s.Snapshot())
	}
}

func (s *Store) isCurrent(gen int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

// Refresh runs the two-phase fetch/merge pass. A newer call supersedes any
// in-flight one: the older pass is cancelled and its results, if any arrive,
// are discarded. Cancellation is not an error.
func (s *Store) Refresh(ctx context.Context, opts RefreshOptions) error {
	s.mu.Lock()
	if s.cancelInflight != nil {
		s.cancelInflight()
	}
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelInflight = cancel
	s.generation++
	gen := s.generation
	isInitial := !s.initialLoadDone
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.generation == gen {
			s.cancelInflight = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	if isInitial {
		s.Prime(fetchCtx)
	}

	nowMs := s.now().UnixMilli()

	var (
		wg              sync.WaitGroup
		ordersRaw       []map[string]interface{}
		reservationsRaw []map[string]interface{}
		ordersErr       error
		reservationsErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ordersRaw, ordersErr = s.data.ListOpenOrders(fetchCtx)
	}()
	go func() {
		defer wg.Done()
		// From today onward: upcoming reservations keep future-booked tables
		// visible as reserved.
		reservationsRaw, reservationsErr = s.data.ListReservations(fetchCtx, FormatLocalYmd(s.now()))
	}()
	wg.Wait()

	if fetchCtx.Err() != nil || !s.isCurrent(gen) {
		return nil
	}
	if ordersErr != nil {
		if errors.Is(ordersErr, context.Canceled) {
			return nil
		}
		return fmt.Errorf("cannot fetch open orders: %w", ordersErr)
	}
	if reservationsErr != nil && !errors.Is(reservationsErr, context.Canceled) {
		s.logger.Error("cannot fetch reservations", "error", reservationsErr)
		reservationsRaw = nil
	}

	orders := make([]*Order, 0, len(ordersRaw))
	for _, raw := range ordersRaw {
		if o := NormalizeOrder(raw); o != nil {
			orders = append(orders, o)
		}
	}
	reservations := make([]*Reservation, 0, len(reservationsRaw))
	for _, raw := range reservationsRaw {
		if r := NormalizeReservation(raw); r != nil {
			reservations = append(reservations, r)
		}
	}

	openSet := buildOpenSet(orders, reservations, nowMs)

	timers := s.timers.Load(fetchCtx)
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return nil
	}
	prevByTable := s.byTable
	merged := MergeByTable(openSet, MergeOptions{Prev: prevByTable, NowMs: nowMs})
	resolveTimers(merged, prevByTable, timers, nowMs, isInitial)
	s.publishLocked(merged, reservations, s.hydrated)
	if opts.SkipHydration {
		s.initialLoadDone = true
	}
	s.mu.Unlock()

	s.timers.Persist(fetchCtx, timers)
	s.writeOrdersCache(fetchCtx, merged)
	s.notify()

	if opts.SkipHydration {
		return nil
	}

	hydrated, err := s.hydrate(fetchCtx, openSet)
	if fetchCtx.Err() != nil || !s.isCurrent(gen) {
		return nil
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("cannot hydrate order items: %w", err)
	}

	nowMs = s.now().UnixMilli()
	mergedFull := MergeByTable(hydrated, MergeOptions{ConcatItems: true, NowMs: nowMs})

	timers = s.timers.Load(fetchCtx)
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return nil
	}
	prevByTable = s.byTable
	resolveTimers(mergedFull, prevByTable, timers, nowMs, isInitial)
	s.publishLocked(mergedFull, reservations, true)
	s.initialLoadDone = true
	s.mu.Unlock()

	s.timers.Persist(fetchCtx, timers)
	s.writeOrdersCache(fetchCtx, mergedFull)
	s.notify()
	return nil
}

// resolveTimers finalizes a freshly merged list against the previous
// snapshot: timer entries for vanished tables are evicted, observably
// unchanged tables keep their published pointer so consumers can skip them,
// everything else gets its confirmed timer resolved.
func resolveTimers(merged []*Order, prev map[int]*Order, timers map[string]int64, nowMs int64, isInitial bool) {
	evictTimers(merged, prev, timers)
	for i, m := range merged {
		p := prev[m.TableNumber]
		if p != nil && SameMergedOrder(p, m) {
			merged[i] = p
			continue
		}
		m.ConfirmedSinceMs = ResolveConfirmedSince(p, m, ResolveContext{
			Timers:        timers,
			TableKey:      TableTimerKey(m.TableNumber),
			NowMs:         nowMs,
			IsInitialLoad: isInitial,
		})
	}
}

func evictTimers(merged []*Order, prev map[int]*Order, timers map[string]int64) {
	next := make(map[string]bool, len(merged))
	for _, m := range merged {
		next[TableTimerKey(m.TableNumber)] = true
	}
	for tableNumber := range prev {
		if key := TableTimerKey(tableNumber); !next[key] {
			delete(timers, key)
		}
	}
}

// buildOpenSet enriches live orders with today's reservations, synthesizes
// reserved rows for bookings with no live order, and filters down to the rows
// the dashboard shows.
func buildOpenSet(orders []*Order, reservations []*Reservation, nowMs int64) []*Order {
	existingIDs := make(map[int64]bool, len(orders))
	existingTables := make(map[int]bool, len(orders))
	for _, o := range orders {
		if o.ID != nil {
			existingIDs[*o.ID] = true
		}
		if o.TableNumber > 0 {
			existingTables[o.TableNumber] = true
		}
	}

	byOrderID := make(map[int64]*Reservation, len(reservations))
	for _, r := range reservations {
		if r.OrderID != nil {
			byOrderID[*r.OrderID] = r
		}
	}

	rows := make([]*Order, 0, len(orders)+len(reservations))
	for _, o := range orders {
		if o.ID != nil && o.ReservationDate == "" {
			if r := byOrderID[*o.ID]; r != nil {
				o = o.Clone()
				o.ReservationDate = r.ReservationDate
				o.ReservationTime = r.ReservationTime
				if r.Clients > 0 {
					clients := r.Clients
					o.ReservationClients = &clients
				}
				o.ReservationNotes = r.Notes
				if o.CustomerName == "" {
					o.CustomerName = r.CustomerName
				}
				if o.CustomerPhone == "" {
					o.CustomerPhone = r.CustomerPhone
				}
			}
		}
		rows = append(rows, o)
	}

	for _, r := range reservations {
		if r.TableNumber <= 0 {
			continue
		}
		orphanOrder := r.OrderID != nil && !existingIDs[*r.OrderID]
		standalone := r.OrderID == nil && !existingTables[r.TableNumber]
		if !orphanOrder && !standalone {
			continue
		}
		clients := r.Clients
		row := &Order{
			ID:               cloneInt64Ptr(r.OrderID),
			TableNumber:      r.TableNumber,
			Status:           "reserved",
			OrderType:        "reservation",
			Items:            []OrderItem{},
			ReservationDate:  r.ReservationDate,
			ReservationTime:  r.ReservationTime,
			ReservationNotes: r.Notes,
			CustomerName:     r.CustomerName,
			CustomerPhone:    r.CustomerPhone,
		}
		if clients > 0 {
			row.ReservationClients = &clients
		}
		rows = append(rows, row)
	}

	open := make([]*Order, 0, len(rows))
	for _, o := range rows {
		if o.TableNumber <= 0 {
			continue
		}
		reservationLike := IsReservationLike(o, nowMs)
		if !reservationLike {
			status := NormalizeStatus(o.Status)
			if status == "closed" || IsCancelledStatus(status) {
				continue
			}
			if IsEffectivelyFree(o, nowMs) {
				continue
			}
		}
		row := o.Clone()
		if reservationLike {
			row.Status = "reserved"
		} else {
			row.Status = NormalizedNonReservationStatus(o)
		}
		if row.Status == "paid" {
			// Settled tables show zero outstanding.
			row.Total = 0
		}
		open = append(open, row)
	}
	return open
}

// hydrate fetches item and reservation detail for every open row with a
// bounded number of requests in flight.
func (s *Store) hydrate(ctx context.Context, rows []*Order) ([]*Order, error) {
	out := make([]*Order, len(rows))
	sem := make(chan struct{}, s.hydrateLimit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	for i, row := range rows {
		wg.Add(1)
		go func(i int, row *Order) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}
			h, err := s.hydrateOne(ctx, row)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			out[i] = h
		}(i, row)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	hydrated := make([]*Order, 0, len(out))
	for _, h := range out {
		if h != nil {
			hydrated = append(hydrated, h)
		}
	}
	return hydrated, nil
}

func (s *Store) hydrateOne(ctx context.Context, row *Order) (*Order, error) {
	h := row.Clone()
	if h.ID == nil {
		h.Items = []OrderItem{}
		if h.Reservation == nil && h.ReservationDate != "" {
			clients := 0
			if h.ReservationClients != nil {
				clients = *h.ReservationClients
			}
			h.Reservation = &Reservation{
				TableNumber:     h.TableNumber,
				ReservationDate: h.ReservationDate,
				ReservationTime: h.ReservationTime,
				Clients:         clients,
				Notes:           h.ReservationNotes,
			}
		}
		return h, nil
	}

	rawItems, err := s.data.ListOrderItems(ctx, *h.ID)
	if err != nil {
		return nil, err
	}
	items := make([]OrderItem, 0, len(rawItems))
	for _, raw := range rawItems {
		items = append(items, normalizeItem(raw))
	}
	if IsOrderPaid(h) {
		anyMarker := false
		for i := range items {
			if items[i].HasPaidMarker() {
				anyMarker = true
				break
			}
		}
		// An order settled as a whole may predate per-line paid markers;
		// backfill so the lines read paid.
		if !anyMarker {
			for i := range items {
				paid := true
				items[i].Paid = &paid
			}
		}
	}
	h.Items = items

	rawRes, err := s.data.GetOrderReservation(ctx, *h.ID)
	switch {
	case err != nil:
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if HasReservationSignal(h) {
			s.logger.Error("cannot fetch reservation for order", "order_id", *h.ID, "error", err)
		}
	case rawRes != nil:
		h.Reservation = NormalizeReservation(rawRes)
	}
	return h, nil
}

func (s *Store) writeOrdersCache(ctx context.Context, orders []*Order) {
	data, err := json.Marshal(orders)
	if err != nil {
		return
	}
	if err := s.cache.Write(ctx, s.tenant, CacheKeyOrders, data); err != nil {
		s.logger.Error("cannot persist orders cache", "error", err)
	}
}

// LocalPatch is a push-event driven mutation of a single table's entry.
type LocalPatch struct {
	TableNumber int
	OrderID     *int64
	Status      string
	Fields      map[string]interface{}
}

// PatchTableOrderLocally applies a push event synchronously: closed removes
// the row and its timer, paid forces the paid shape, anything else overwrites
// the status and patch fields, inserting a minimal row when the table is
// unknown. The patch is idempotent; reapplying it is a no-op. Authoritative
// state arrives with the next reconciliation refresh.
func (s *Store) PatchTableOrderLocally(ctx context.Context, p LocalPatch) {
	if p.TableNumber <= 0 {
		return
	}
	status := NormalizeStatus(p.Status)
	if status == "" {
		return
	}
	now := s.now()
	nowMs := now.UnixMilli()
	key := TableTimerKey(p.TableNumber)
	timers := s.timers.Load(ctx)

	s.mu.Lock()
	prev := s.byTable[p.TableNumber]
	next := make([]*Order, 0, len(s.orders)+1)

	switch {
	case status == "closed":
		if prev == nil {
			s.mu.Unlock()
			delete(timers, key)
			s.timers.Persist(ctx, timers)
			return
		}
		for _, o := range s.orders {
			if o.TableNumber != p.TableNumber {
				next = append(next, o)
			}
		}
		delete(timers, key)
	default:
		var row *Order
		if prev != nil {
			row = prev.Clone()
		} else {
			row = &Order{
				ID:          cloneInt64Ptr(p.OrderID),
				TableNumber: p.TableNumber,
			}
		}
		if row.ID == nil {
			row.ID = cloneInt64Ptr(p.OrderID)
		}
		row.Status = status
		row.UpdatedAt = now.Format(time.RFC3339)
		if status == "paid" {
			row.PaymentStatus = "paid"
			row.IsPaid = true
			row.Total = 0
			markItemsPaid(row, now)
		}
		applyPatchFields(row, p.Fields)
		if status == "confirmed" {
			row.ConfirmedSinceMs = ResolveConfirmedSince(prev, row, ResolveContext{
				Timers:   timers,
				TableKey: key,
				NowMs:    nowMs,
			})
		} else {
			row.ConfirmedSinceMs = 0
			delete(timers, key)
		}
		inserted := false
		for _, o := range s.orders {
			if o.TableNumber == p.TableNumber {
				next = append(next, row)
				inserted = true
				continue
			}
			next = append(next, o)
		}
		if !inserted {
			next = append(next, row)
			sort.Slice(next, func(i, j int) bool {
				return next[i].TableNumber < next[j].TableNumber
			})
		}
	}

	reservations := s.reservations
	hydrated := s.hydrated
	s.publishLocked(next, reservations, hydrated)
	s.mu.Unlock()

	s.timers.Persist(ctx, timers)
	s.writeOrdersCache(ctx, next)
	s.notify()
}

func markItemsPaid(o *Order, now time.Time) {
	stamp := now.Format(time.RFC3339)
	paidTrue := func(items []OrderItem) {
		for i := range items {
			paid := true
			items[i].Paid = &paid
			if items[i].PaidAt == "" {
				items[i].PaidAt = stamp
			}
		}
	}
	paidTrue(o.Items)
	for i := range o.Suborders {
		paidTrue(o.Suborders[i].Items)
	}
}

func applyPatchFields(o *Order, fields map[string]interface{}) {
	if len(fields) == 0 {
		return
	}
	if f, ok := pickFloat(fields, "total"); ok {
		o.Total = f
	}
	if v := pickString(fields, "customer_name", "customerName"); v != "" {
		o.CustomerName = v
	}
	if v := pickString(fields, "customer_phone", "customerPhone"); v != "" {
		o.CustomerPhone = v
	}
	if v := pickString(fields, "payment_status", "paymentStatus"); v != "" {
		o.PaymentStatus = NormalizeStatus(v)
	}
	if b, ok := pickBool(fields, "is_paid", "isPaid"); ok {
		o.IsPaid = b
	}
	if v := pickString(fields, "order_number", "orderNumber"); v != "" {
		o.OrderNumber = v
	}
	if v := pickString(fields, "invoice_number", "invoiceNumber"); v != "" {
		o.InvoiceNumber = v
	}
	if v := pickString(fields, "receipt_number", "receiptNumber"); v != "" {
		o.ReceiptNumber = v
	}
	if v := pickString(fields, "order_type", "orderType"); v != "" {
		o.OrderType = v
	}
	if v := pickString(fields, "updated_at", "updatedAt"); v != "" {
		o.UpdatedAt = v
	}
	if v := pickString(fields, "reservation_date", "reservationDate"); v != "" {
		o.ReservationDate = v
	}
	if v := pickString(fields, "reservation_time", "reservationTime"); v != "" {
		o.ReservationTime = v
	}
	if v := pickString(fields, "reservation_notes", "reservationNotes"); v != "" {
		o.ReservationNotes = v
	}
	if n, ok := pickInt(fields, "reservation_clients", "reservationClients"); ok {
		clients := n
		o.ReservationClients = &clients
	}
}

func cloneInt64Ptr(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
