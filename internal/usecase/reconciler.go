package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"shipment-eventing-service/internal/domain/entity"
	"shipment-eventing-service/internal/domain/repository"
	"shipment-eventing-service/pkg/logger"
	"shipment-eventing-service/pkg/lookup"
	"shipment-eventing-service/pkg/metrics"
)

// Reconciler merges readiness updates into the status store and
// dispatches exactly once per record, on the PENDING to READY edge.
// Replays of already-merged updates are no-ops; records that reached a
// terminal status are never touched again.
type Reconciler struct {
	store        repository.StatusRecordRepository
	shipments    repository.ShipmentRepository
	entitlements repository.EntitlementRepository
	builder      *PayloadBuilder
	dispatcher   *Dispatcher
	alerts       repository.AlertNotifier
	metrics      *metrics.Metrics
	log          logger.Logger
	stage        string
	updatedBy    string
}

// NewReconciler wires the reconciliation engine
func NewReconciler(
	store repository.StatusRecordRepository,
	shipments repository.ShipmentRepository,
	entitlements repository.EntitlementRepository,
	builder *PayloadBuilder,
	dispatcher *Dispatcher,
	alerts repository.AlertNotifier,
	m *metrics.Metrics,
	log logger.Logger,
	stage, updatedBy string,
) *Reconciler {
	return &Reconciler{
		store:        store,
		shipments:    shipments,
		entitlements: entitlements,
		builder:      builder,
		dispatcher:   dispatcher,
		alerts:       alerts,
		metrics:      m,
		log:          log.With("component", "reconciler"),
		stage:        stage,
		updatedBy:    updatedBy,
	}
}

// Apply merges one normalized update. Only the workflow's initiating
// entity may create the record; merges for other entities are dropped
// when no record exists yet.
func (r *Reconciler) Apply(ctx context.Context, u *Update) error {
	if u == nil {
		return nil
	}
	wf := u.Workflow
	log := r.log.With("workflow", wf.Name, "orderNo", u.OrderNo, "entity", u.Entity)

	if wf.TrackProcessState && u.Milestone != nil {
		if err := r.shipments.SetMilestoneProcessState(ctx, u.OrderNo, u.Milestone.OrderStatusID, entity.ProcessStatePending); err != nil {
			log.Warn("could not mark milestone pending", "error", err)
		}
	}

	create := u.Entity == wf.Initiator
	record, err := r.store.UpsertEntity(ctx, wf, u.RecordKey, u.OrderNo, u.Entity, u.Readiness, u.Snapshot, create, r.updatedBy)
	if err != nil {
		return err
	}
	if record == nil {
		log.Debug("no status record to merge into, update dropped")
		return nil
	}
	if record.AggregateStatus.Terminal() {
		log.Info("record already terminal, update ignored", "status", record.AggregateStatus)
		r.metrics.RecordsSkipped.Inc()
		return nil
	}

	if u.Skip != nil {
		log.Info("record closed at normalization", "status", u.Skip.Status, "reason", u.Skip.Message)
		r.metrics.RecordsSkipped.Inc()
		return r.store.TransitionAggregate(ctx, wf.Name, u.RecordKey, u.Skip.Status, u.Skip.Message, 0, r.updatedBy)
	}

	if u.Entity == wf.RoutingTrigger && len(record.CustomerIDs) == 0 {
		ids, deleted, err := r.resolveRouting(ctx, wf, record)
		if err != nil {
			return err
		}
		if deleted {
			return nil
		}
		record.CustomerIDs = ids
	}

	if record.AllReady() && record.AggregateStatus == entity.StatusPending {
		if err := r.store.TransitionAggregate(ctx, wf.Name, u.RecordKey, entity.StatusReady, "", 0, r.updatedBy); err != nil {
			return err
		}
		record.AggregateStatus = entity.StatusReady
		if err := r.DispatchReady(ctx, wf, record); err != nil {
			return err
		}
		if wf.TrackProcessState && u.Milestone != nil {
			if err := r.shipments.SetMilestoneProcessState(ctx, u.OrderNo, u.Milestone.OrderStatusID, entity.ProcessStateProcessed); err != nil {
				log.Warn("could not mark milestone processed", "error", err)
			}
		}
	}

	r.metrics.RecordsProcessed.Inc()
	return nil
}

// Retrigger is the operator reset: every record for the order under
// the workflow returns to PENDING so the next sweep re-evaluates it
// from the source tables.
func (r *Reconciler) Retrigger(ctx context.Context, wf entity.Workflow, orderNo string) error {
	r.log.Info("record retriggered", "workflow", wf.Name, "orderNo", orderNo)
	return r.store.ResetForRetrigger(ctx, wf.Name, orderNo, r.updatedBy)
}

// resolveRouting maps the record to its customer routing keys. An
// order no customer subscribes to is a terminal business outcome: the
// record is deleted so a later retrigger starts clean, and deleted=true
// is returned. Empty ids with deleted=false means the inputs needed
// for resolution have not arrived yet.
func (r *Reconciler) resolveRouting(ctx context.Context, wf entity.Workflow, record *entity.StatusRecord) (ids []string, deleted bool, err error) {
	switch wf.RoutingMode {
	case entity.RouteByBillMapping:
		billNo := record.Snapshot.BillNo
		if billNo == "" {
			return nil, false, nil
		}
		id, ok := lookup.CustomerForBill(billNo, r.stage)
		if !ok {
			r.log.Info("no customer mapping for bill, record deleted",
				"workflow", wf.Name, "orderNo", record.OrderNo, "billNo", billNo)
			r.metrics.RecordsSkipped.Inc()
			return nil, true, r.store.Delete(ctx, wf.Name, record.RecordKey)
		}
		ids = []string{id}

	case entity.RouteByEntitlement:
		housebill := record.Snapshot.Housebill
		if housebill == "" {
			header, err := r.shipments.GetHeader(ctx, record.OrderNo)
			if err != nil {
				return nil, false, err
			}
			if header != nil {
				housebill = header.Housebill
			}
		}
		if housebill == "" {
			return nil, false, nil
		}
		var allowed []string
		if wf.FilterByPolicy {
			allowed, err = r.entitlements.AllowedCustomerIDs(ctx)
			if err != nil {
				return nil, false, err
			}
		}
		ids, err = r.entitlements.CustomersForHousebill(ctx, housebill, allowed)
		if err != nil {
			return nil, false, err
		}
		if len(ids) == 0 {
			r.log.Info("no entitled customer for housebill, record deleted",
				"workflow", wf.Name, "orderNo", record.OrderNo, "housebill", housebill)
			r.metrics.RecordsSkipped.Inc()
			return nil, true, r.store.Delete(ctx, wf.Name, record.RecordKey)
		}
	}

	if err := r.store.StageDispatch(ctx, wf.Name, record.RecordKey, ids, "", r.updatedBy); err != nil {
		return nil, false, err
	}
	return ids, false, nil
}

// DispatchReady builds and publishes the payload for a record whose
// aggregate status is READY, then marks it SENT. On any failure the
// record stays READY with the reason recorded, so the sweeper can
// retry it.
func (r *Reconciler) DispatchReady(ctx context.Context, wf entity.Workflow, record *entity.StatusRecord) error {
	log := r.log.With("workflow", wf.Name, "orderNo", record.OrderNo)

	ids := record.CustomerIDs
	if len(ids) == 0 {
		var deleted bool
		var err error
		ids, deleted, err = r.resolveRouting(ctx, wf, record)
		if err != nil {
			return err
		}
		if deleted {
			return nil
		}
		if len(ids) == 0 {
			return r.store.TransitionAggregate(ctx, wf.Name, record.RecordKey, entity.StatusReady,
				"customer routing unresolved for order "+record.OrderNo, 0, r.updatedBy)
		}
	}

	payload, err := r.builder.Build(ctx, wf, record)
	if err != nil {
		var verr *entity.ValidationError
		if errors.As(err, &verr) {
			log.Error("payload validation failed", "error", verr)
			r.metrics.ErrorsCount.WithLabelValues("validate").Inc()
			return err
		}
		log.Warn("payload build deferred", "error", err)
		if terr := r.store.TransitionAggregate(ctx, wf.Name, record.RecordKey, entity.StatusReady, err.Error(), 0, r.updatedBy); terr != nil {
			return terr
		}
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := r.store.StageDispatch(ctx, wf.Name, record.RecordKey, ids, string(body), r.updatedBy); err != nil {
		return err
	}

	if err := r.dispatcher.Dispatch(ctx, payload, ids); err != nil {
		r.alerts.Alert(ctx, "dispatch", err.Error())
		if terr := r.store.TransitionAggregate(ctx, wf.Name, record.RecordKey, entity.StatusReady, err.Error(), 0, r.updatedBy); terr != nil {
			return terr
		}
		return err
	}

	log.Info("record dispatched", "customers", len(ids), "trackingNo", payload.TrackingNo)
	return r.store.TransitionAggregate(ctx, wf.Name, record.RecordKey, entity.StatusSent, "", 0, r.updatedBy)
}
