package floor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"

	"github.com/hurrypos/floor/pkg/event"
)

const reconcileKey = "floor.reconcile"

// PatchReconciler consumes order lifecycle events: each event is applied to
// the store synchronously as a local patch, then a reconciliation refresh is
// scheduled through the idle scheduler. The schedule coalesces, so a burst of
// events costs one refresh.
type PatchReconciler struct {
	store          *Store
	subscriber     events.Subscriber
	scheduler      TaskScheduler
	logger         aqm.Logger
	reconcileDelay time.Duration
}

// PatchReconcilerOptions configures a PatchReconciler.
type PatchReconcilerOptions struct {
	Store      *Store
	Subscriber events.Subscriber
	Scheduler  TaskScheduler
	Logger     aqm.Logger
	// ReconcileDelay is how long after the last event the authoritative
	// refresh fires. Defaults to 300ms.
	ReconcileDelay time.Duration
}

func NewPatchReconciler(opts PatchReconcilerOptions) *PatchReconciler {
	if opts.Logger == nil {
		opts.Logger = aqm.NewNoopLogger()
	}
	if opts.ReconcileDelay <= 0 {
		opts.ReconcileDelay = 300 * time.Millisecond
	}
	return &PatchReconciler{
		store:          opts.Store,
		subscriber:     opts.Subscriber,
		scheduler:      opts.Scheduler,
		logger:         opts.Logger,
		reconcileDelay: opts.ReconcileDelay,
	}
}

// Start subscribes to the floor orders topic.
func (r *PatchReconciler) Start(ctx context.Context) error {
	if r.subscriber == nil {
		return fmt.Errorf("no subscriber configured")
	}
	if err := r.subscriber.Subscribe(ctx, event.FloorOrdersTopic, r.HandleMessage); err != nil {
		return fmt.Errorf("cannot subscribe to %s: %w", event.FloorOrdersTopic, err)
	}
	return nil
}

// HandleMessage processes one raw event payload.
func (r *PatchReconciler) HandleMessage(ctx context.Context, data []byte) error {
	var evt event.OrderStatusEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		r.logger.Error("cannot decode order event", "error", err)
		return nil
	}
	r.Apply(ctx, evt)
	return nil
}

// Apply patches the store for one event and schedules reconciliation.
// orders_updated carries no patch of its own; it only nudges the refresh.
func (r *PatchReconciler) Apply(ctx context.Context, evt event.OrderStatusEvent) {
	switch evt.EventType {
	case event.EventOrdersUpdated:
	case event.EventOrderConfirmed, event.EventPaymentMade,
		event.EventOrderCancelled, event.EventOrderClosed:
		status := evt.Status
		if status == "" {
			status = event.StatusForEvent(evt.EventType)
		}
		r.store.PatchTableOrderLocally(ctx, LocalPatch{
			TableNumber: evt.TableNumber,
			OrderID:     evt.OrderID,
			Status:      status,
			Fields:      evt.Patch,
		})
	default:
		r.logger.Debug("ignoring unknown order event", "event_type", evt.EventType)
		return
	}
	r.scheduleReconcile()
}

func (r *PatchReconciler) scheduleReconcile() {
	if r.scheduler == nil {
		return
	}
	r.scheduler.ScheduleIdle(reconcileKey, r.reconcileDelay, func(ctx context.Context) {
		if err := r.store.Refresh(ctx, RefreshOptions{}); err != nil {
			r.logger.Error("reconciliation refresh failed", "error", err)
		}
	})
}
