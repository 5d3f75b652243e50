package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shipment-eventing-service/internal/domain/entity"
	"shipment-eventing-service/internal/domain/repository"
	"shipment-eventing-service/pkg/logger"
	"shipment-eventing-service/pkg/metrics"
)

// Sweeper is the periodic repair pass. It re-checks the source tables
// for records stuck in PENDING, retries dispatch for records stuck in
// READY, and escalates records that exhausted their retries. Events
// that never arrive on the feed are healed here.
type Sweeper struct {
	store      repository.StatusRecordRepository
	shipments  repository.ShipmentRepository
	engine     *Reconciler
	alerts     repository.AlertNotifier
	metrics    *metrics.Metrics
	log        logger.Logger
	workflows  map[string]entity.Workflow
	maxRetries int
	pageSize   int
	updatedBy  string
}

// NewSweeper creates the periodic sweeper
func NewSweeper(
	store repository.StatusRecordRepository,
	shipments repository.ShipmentRepository,
	engine *Reconciler,
	alerts repository.AlertNotifier,
	m *metrics.Metrics,
	log logger.Logger,
	workflows map[string]entity.Workflow,
	maxRetries, pageSize int,
	updatedBy string,
) *Sweeper {
	return &Sweeper{
		store:      store,
		shipments:  shipments,
		engine:     engine,
		alerts:     alerts,
		metrics:    m,
		log:        log.With("component", "sweeper"),
		workflows:  workflows,
		maxRetries: maxRetries,
		pageSize:   pageSize,
		updatedBy:  updatedBy,
	}
}

// Sweep runs one full pass. Per-record failures are isolated: they are
// logged and alerted but never stop the rest of the pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	start := time.Now()
	defer func() {
		s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.store.EachByAggregateStatus(ctx, entity.StatusPending, s.pageSize, func(rec *entity.StatusRecord) error {
		s.sweepPending(ctx, rec)
		return nil
	}); err != nil {
		s.alerts.Alert(ctx, "sweeper", fmt.Sprintf("pending sweep aborted: %v", err))
		return err
	}

	if err := s.store.EachByAggregateStatus(ctx, entity.StatusReady, s.pageSize, func(rec *entity.StatusRecord) error {
		s.retryDispatch(ctx, rec)
		return nil
	}); err != nil {
		s.alerts.Alert(ctx, "sweeper", fmt.Sprintf("ready sweep aborted: %v", err))
		return err
	}
	return nil
}

// sweepPending re-derives readiness for every entity still PENDING by
// reading the source tables directly, then either promotes, escalates
// or bumps the retry count.
func (s *Sweeper) sweepPending(ctx context.Context, rec *entity.StatusRecord) {
	wf, ok := s.workflows[rec.Workflow]
	if !ok {
		s.log.Warn("record for unknown workflow skipped", "workflow", rec.Workflow, "orderNo", rec.OrderNo)
		return
	}

	merged := make(map[entity.EntityType]entity.Readiness, len(rec.EntityStatuses))
	for typ, st := range rec.EntityStatuses {
		merged[typ] = st
	}
	for typ, st := range rec.EntityStatuses {
		if st == entity.ReadinessReady {
			continue
		}
		ready, snap, err := s.checkEntity(ctx, wf, rec, typ)
		if err != nil {
			s.fail(ctx, wf, rec, err)
			return
		}
		if !ready {
			continue
		}
		// Merge the snapshot too, so records healed here can still be
		// built from their snapshot later
		if _, err := s.store.UpsertEntity(ctx, wf, rec.RecordKey, rec.OrderNo, typ, entity.ReadinessReady, snap, false, s.updatedBy); err != nil {
			s.fail(ctx, wf, rec, err)
			return
		}
		merged[typ] = entity.ReadinessReady
	}

	if allReady(merged) {
		if err := s.store.TransitionAggregate(ctx, wf.Name, rec.RecordKey, entity.StatusReady, "", 0, s.updatedBy); err != nil {
			s.fail(ctx, wf, rec, err)
			return
		}
		fresh, err := s.store.Get(ctx, wf.Name, rec.RecordKey)
		if err != nil {
			s.fail(ctx, wf, rec, err)
			return
		}
		if fresh == nil {
			return
		}
		if err := s.engine.DispatchReady(ctx, wf, fresh); err != nil {
			s.log.Warn("dispatch failed during sweep, record left for retry",
				"workflow", wf.Name, "orderNo", rec.OrderNo, "error", err)
		}
		return
	}

	pending := pendingOf(merged)
	if rec.RetryCount >= s.maxRetries {
		s.escalate(ctx, wf, rec, pending)
		return
	}
	if err := s.store.TransitionAggregate(ctx, wf.Name, rec.RecordKey, entity.StatusPending, "", 1, s.updatedBy); err != nil {
		s.fail(ctx, wf, rec, err)
	}
}

// escalate closes a record that stayed incomplete through every retry.
// A record waiting only on its milestone is a normal business case and
// is skipped quietly; anything else is a failure worth an alert.
func (s *Sweeper) escalate(ctx context.Context, wf entity.Workflow, rec *entity.StatusRecord, pending []entity.EntityType) {
	if len(pending) == 1 && pending[0] == entity.EntityMilestone {
		msg := "Shipment milestone table is not populated for Order id " + rec.OrderNo
		s.log.Info("record skipped", "workflow", wf.Name, "orderNo", rec.OrderNo, "reason", msg)
		s.metrics.RecordsSkipped.Inc()
		if err := s.store.TransitionAggregate(ctx, wf.Name, rec.RecordKey, entity.StatusSkipped, msg, 1, s.updatedBy); err != nil {
			s.fail(ctx, wf, rec, err)
		}
		return
	}

	names := make([]string, len(pending))
	for i, p := range pending {
		names[i] = string(p)
	}
	msg := fmt.Sprintf("Source tables are not populated for Order id %s; pending: %s",
		rec.OrderNo, strings.Join(names, ", "))
	s.log.Error("record failed", "workflow", wf.Name, "orderNo", rec.OrderNo,
		"retryCount", rec.RetryCount, "pending", strings.Join(names, ","))
	s.alerts.Alert(ctx, "sweeper", msg)
	if err := s.store.TransitionAggregate(ctx, wf.Name, rec.RecordKey, entity.StatusFailed, msg, 1, s.updatedBy); err != nil {
		s.fail(ctx, wf, rec, err)
	}
}

// retryDispatch re-attempts publication for a record that reached
// READY but never made it to SENT
func (s *Sweeper) retryDispatch(ctx context.Context, rec *entity.StatusRecord) {
	wf, ok := s.workflows[rec.Workflow]
	if !ok {
		s.log.Warn("record for unknown workflow skipped", "workflow", rec.Workflow, "orderNo", rec.OrderNo)
		return
	}
	if err := s.engine.DispatchReady(ctx, wf, rec); err != nil {
		s.log.Warn("dispatch retry failed", "workflow", wf.Name, "orderNo", rec.OrderNo, "error", err)
	}
}

// checkEntity re-derives one entity's readiness from the source
// tables, returning the snapshot fields observed along the way
func (s *Sweeper) checkEntity(ctx context.Context, wf entity.Workflow, rec *entity.StatusRecord, typ entity.EntityType) (bool, entity.Snapshot, error) {
	var none entity.Snapshot
	switch typ {
	case entity.EntityHeader:
		header, err := s.shipments.GetHeader(ctx, rec.OrderNo)
		if err != nil {
			return false, none, err
		}
		if header == nil || header.Housebill == "" {
			return false, none, nil
		}
		if wf.HeaderNeedsSchedule && sentinelDate(header.ScheduledDateTime) {
			return false, none, nil
		}
		return true, entity.Snapshot{
			UUID:              header.UUID,
			Housebill:         header.Housebill,
			BillNo:            header.BillNo,
			ScheduledDateTime: header.ScheduledDateTime,
			ETADateTime:       normalizeEventDate(header.ETADateTime),
		}, nil

	case entity.EntityShipper:
		rows, err := s.shipments.ListShippers(ctx, rec.OrderNo)
		if err != nil {
			return false, none, err
		}
		if !shippersComplete(rows) {
			return false, none, nil
		}
		first := rows[0]
		return true, entity.Snapshot{
			ShipName:    first.Name,
			ShipCity:    first.City,
			ShipState:   first.State,
			ShipZip:     first.Zip,
			ShipCountry: first.Country,
		}, nil

	case entity.EntityConsignee:
		rows, err := s.shipments.ListConsignees(ctx, rec.OrderNo)
		if err != nil {
			return false, none, err
		}
		if !consigneesComplete(rows) {
			return false, none, nil
		}
		first := rows[0]
		return true, entity.Snapshot{
			ConCity:    first.City,
			ConState:   first.State,
			ConZip:     first.Zip,
			ConCountry: first.Country,
		}, nil

	case entity.EntityMilestone:
		code := wf.QualifyingMilestone
		if code == "" {
			code = rec.Snapshot.StatusCode
		}
		if code == "" {
			return false, none, nil
		}
		milestone, err := s.shipments.GetMilestone(ctx, rec.OrderNo, code)
		if err != nil {
			return false, none, err
		}
		if milestone == nil {
			return false, none, nil
		}
		return true, entity.Snapshot{
			StatusCode:    milestone.OrderStatusID,
			EventDateTime: normalizeEventDate(milestone.EventDateTime),
		}, nil

	case entity.EntityDocument:
		header, err := s.shipments.GetHeader(ctx, rec.OrderNo)
		if err != nil {
			return false, none, err
		}
		if header == nil || header.Housebill == "" {
			return false, none, nil
		}
		return true, entity.Snapshot{
			UUID:      header.UUID,
			Housebill: header.Housebill,
			BillNo:    header.BillNo,
		}, nil
	}
	return false, none, nil
}

// fail records a transient sweep error without closing the record
func (s *Sweeper) fail(ctx context.Context, wf entity.Workflow, rec *entity.StatusRecord, err error) {
	s.log.Error("sweep failed for record", "workflow", wf.Name, "orderNo", rec.OrderNo, "error", err)
	s.metrics.ErrorsCount.WithLabelValues("sweep").Inc()
	s.alerts.Alert(ctx, "sweeper", fmt.Sprintf("sweep failed for order %s: %v", rec.OrderNo, err))
	if terr := s.store.TransitionAggregate(ctx, wf.Name, rec.RecordKey, entity.StatusPending, err.Error(), 1, s.updatedBy); terr != nil {
		s.log.Error("could not record sweep failure", "workflow", wf.Name, "orderNo", rec.OrderNo, "error", terr)
	}
}

func allReady(statuses map[entity.EntityType]entity.Readiness) bool {
	if len(statuses) == 0 {
		return false
	}
	for _, st := range statuses {
		if st != entity.ReadinessReady {
			return false
		}
	}
	return true
}

func pendingOf(statuses map[entity.EntityType]entity.Readiness) []entity.EntityType {
	order := []entity.EntityType{entity.EntityHeader, entity.EntityShipper, entity.EntityConsignee, entity.EntityMilestone, entity.EntityDocument}
	var pending []entity.EntityType
	for _, typ := range order {
		if st, ok := statuses[typ]; ok && st != entity.ReadinessReady {
			pending = append(pending, typ)
		}
	}
	return pending
}
