package floor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler is the dashboard HTTP surface: table view-models, the merged order
// snapshot, the SSE change stream and the staff mutations proxied to the
// collaborator services.
type Handler struct {
	store       *Store
	builder     *ModelBuilder
	grid        *GridLayout
	prep        *PrepTracker
	broadcaster *Broadcaster
	scheduler   TaskScheduler
	orders      *OrderDataAccess
	tables      *TableDataAccess
	logger      aqm.Logger
}

// HandlerOptions wires the handler's collaborators.
type HandlerOptions struct {
	Store       *Store
	Builder     *ModelBuilder
	Grid        *GridLayout
	Prep        *PrepTracker
	Broadcaster *Broadcaster
	Scheduler   TaskScheduler
	Orders      *OrderDataAccess
	Tables      *TableDataAccess
	Logger      aqm.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	if opts.Logger == nil {
		opts.Logger = aqm.NewNoopLogger()
	}
	if opts.Builder == nil {
		opts.Builder = NewModelBuilder(nil)
	}
	if opts.Grid == nil {
		opts.Grid = NewGridLayout(0, 1)
	}
	return &Handler{
		store:       opts.Store,
		builder:     opts.Builder,
		grid:        opts.Grid,
		prep:        opts.Prep,
		broadcaster: opts.Broadcaster,
		scheduler:   opts.Scheduler,
		orders:      opts.Orders,
		tables:      opts.Tables,
		logger:      opts.Logger,
	}
}

// RegisterRoutes mounts the dashboard API.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/floor", func(r chi.Router) {
		r.Get("/tables", h.Tables)
		r.Get("/tables/{number}/prep", h.TablePrep)
		r.Patch("/tables/{number}", h.UpdateTable)
		r.Get("/orders", h.Orders)
		r.Post("/refresh", h.Refresh)
		r.Get("/stream", h.Stream)
		r.Post("/grid/window", h.GridWindow)
		r.Post("/grid/measure", h.GridMeasure)
		r.Delete("/reservations/{id}", h.DeleteReservation)
	})
}

func (h *Handler) buildModels(r *http.Request) ([]*TableViewModel, map[string][]*TableViewModel, error) {
	configs, err := h.tables.ListTableConfigs(r.Context())
	if err != nil {
		return nil, nil, err
	}
	tables, grouped := h.builder.Build(configs, h.store.Snapshot())
	return tables, grouped, nil
}

// Tables returns the full table list plus the per-area grouping.
func (h *Handler) Tables(w http.ResponseWriter, r *http.Request) {
	tables, grouped, err := h.buildModels(r)
	if err != nil {
		h.logger.Error("cannot build table models", "error", err)
		aqm.RespondError(w, http.StatusBadGateway, "cannot load table configuration")
		return
	}
	aqm.RespondSuccess(w, map[string]interface{}{
		"tables":  tables,
		"grouped": grouped,
	})
}

// TablePrep returns the kitchen-progress meta for one table.
func (h *Handler) TablePrep(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		aqm.RespondError(w, http.StatusBadRequest, "invalid table number")
		return
	}
	aqm.RespondSuccess(w, h.prep.TablePrepMeta(number))
}

// UpdateTable proxies a floor-plan edit to the table service and schedules a
// refresh so the change shows up.
func (h *Handler) UpdateTable(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		aqm.RespondError(w, http.StatusBadRequest, "invalid table number")
		return
	}
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.tables.UpdateTableConfig(r.Context(), number, payload); err != nil {
		h.logger.Error("cannot update table", "table_number", number, "error", err)
		aqm.RespondError(w, http.StatusBadGateway, "cannot update table")
		return
	}
	h.scheduleRefresh()
	aqm.RespondSuccess(w, map[string]interface{}{"updated": true})
}

// Orders returns the merged one-entry-per-table snapshot.
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	aqm.RespondCollection(w, snap.Orders, "orders")
}

// Refresh forces a fetch/merge pass. ?skip_hydration=true stops after the
// summary phase.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	opts := RefreshOptions{
		SkipHydration: r.URL.Query().Get("skip_hydration") == "true",
	}
	if err := h.store.Refresh(r.Context(), opts); err != nil {
		h.logger.Error("refresh failed", "error", err)
		aqm.RespondError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	snap := h.store.Snapshot()
	aqm.RespondSuccess(w, map[string]interface{}{
		"generation":  snap.Generation,
		"hydrated":    snap.Hydrated,
		"table_count": len(snap.Orders),
	})
}

// DeleteReservation proxies a reservation cancellation, then refreshes.
func (h *Handler) DeleteReservation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		aqm.RespondError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}
	if err := h.orders.DeleteReservation(r.Context(), id); err != nil {
		h.logger.Error("cannot delete reservation", "reservation_id", id, "error", err)
		aqm.RespondError(w, http.StatusBadGateway, "cannot delete reservation")
		return
	}
	h.scheduleRefresh()
	aqm.RespondSuccess(w, map[string]interface{}{"deleted": true})
}

func (h *Handler) scheduleRefresh() {
	if h.scheduler == nil {
		return
	}
	h.scheduler.ScheduleIdle(reconcileKey, 300*time.Millisecond, func(ctx context.Context) {
		if err := h.store.Refresh(ctx, RefreshOptions{}); err != nil {
			h.logger.Error("scheduled refresh failed", "error", err)
		}
	})
}

type gridWindowRequest struct {
	Viewport Viewport `json:"viewport"`
}

// GridWindow computes the virtualized render window for the current table
// list under the reported viewport, materializing only visible rows.
func (h *Handler) GridWindow(w http.ResponseWriter, r *http.Request) {
	var req gridWindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	tables, _, err := h.buildModels(r)
	if err != nil {
		h.logger.Error("cannot build table models", "error", err)
		aqm.RespondError(w, http.StatusBadGateway, "cannot load table configuration")
		return
	}
	win := h.grid.ComputeWindow(len(tables), req.Viewport)
	rows := RenderWindow(win, len(tables),
		func(i int) string { return fmt.Sprintf("table-%d", tables[i].TableNumber) },
		func(i int) interface{} { return tables[i] },
	)
	aqm.RespondSuccess(w, map[string]interface{}{
		"window": win,
		"rows":   rows,
	})
}

type gridMeasureRequest struct {
	Row    int `json:"row"`
	Height int `json:"height"`
}

// GridMeasure records a rendered row's measured height.
func (h *Handler) GridMeasure(w http.ResponseWriter, r *http.Request) {
	var req gridMeasureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	changed := h.grid.SetMeasuredRowHeight(req.Row, req.Height)
	aqm.RespondSuccess(w, map[string]interface{}{"changed": changed})
}

// Stream is the SSE endpoint pushing snapshot-change events.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := uuid.New().String()
	h.logger.Info("new SSE connection", "subscriber_id", subscriberID)

	events := h.broadcaster.Subscribe(subscriberID)
	defer h.broadcaster.Unsubscribe(subscriberID)

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", "subscriber_id", subscriberID)
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}

		case evt, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, data)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}
