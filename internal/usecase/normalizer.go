package usecase

import (
	"context"
	"strings"

	"shipment-eventing-service/internal/domain/entity"
	"shipment-eventing-service/internal/domain/repository"
	"shipment-eventing-service/pkg/logger"
	"shipment-eventing-service/pkg/lookup"
)

// Update is one normalized readiness observation, ready to be merged
// into the status store. A nil Update means the change was filtered
// out and nothing should happen.
type Update struct {
	Workflow  entity.Workflow
	OrderNo   string
	RecordKey string
	Entity    entity.EntityType
	Readiness entity.Readiness
	Snapshot  entity.Snapshot

	// Skip, when set, short-circuits the record straight to the given
	// terminal status after the merge
	Skip *SkipOutcome

	// Milestone carries the triggering milestone row for workflows
	// that advance its process state
	Milestone *entity.Milestone
}

// SkipOutcome is a terminal decision made at normalization time
type SkipOutcome struct {
	Status  entity.AggregateStatus
	Message string
}

// Normalizer turns raw change-feed records into per-entity readiness
// updates. All table-specific field extraction, sentinel filtering and
// completeness checking lives here.
type Normalizer struct {
	shipments repository.ShipmentRepository
	log       logger.Logger
}

// NewNormalizer creates a new change normalizer
func NewNormalizer(shipments repository.ShipmentRepository, log logger.Logger) *Normalizer {
	return &Normalizer{
		shipments: shipments,
		log:       log.With("component", "normalizer"),
	}
}

// Normalize maps one change record onto one workflow. Deletions and
// changes the workflow does not care about yield (nil, nil).
func (n *Normalizer) Normalize(ctx context.Context, wf entity.Workflow, change entity.ChangeEvent) (*Update, error) {
	if change.Op == entity.OpRemove {
		return nil, nil
	}
	switch change.SourceTable {
	case entity.TableShipmentHeader:
		return n.normalizeHeader(wf, change)
	case entity.TableShipper:
		return n.normalizeShipper(ctx, wf, change)
	case entity.TableConsignee:
		return n.normalizeConsignee(ctx, wf, change)
	case entity.TableMilestone:
		return n.normalizeMilestone(wf, change)
	case entity.TableFile:
		return n.normalizeDocument(ctx, wf, change)
	}
	n.log.Warn("change for unknown source table dropped", "sourceTable", change.SourceTable)
	return nil, nil
}

func (n *Normalizer) normalizeHeader(wf entity.Workflow, change entity.ChangeEvent) (*Update, error) {
	if !wf.Tracks(entity.EntityHeader) {
		return nil, nil
	}
	orderNo := entity.StringField(change.NewImage, "PK_OrderNo", "")
	if orderNo == "" {
		return nil, nil
	}
	housebill := entity.StringField(change.NewImage, "Housebill", "")
	if housebill == "" {
		n.log.Debug("header without housebill dropped", "orderNo", orderNo)
		return nil, nil
	}

	scheduled := entity.StringField(change.NewImage, "ScheduledDateTime", "")
	if wf.HeaderNeedsSchedule {
		if change.Op == entity.OpModify {
			old := entity.StringField(change.OldImage, "ScheduledDateTime", "")
			if old == scheduled {
				n.log.Debug("scheduled date unchanged, header change suppressed", "orderNo", orderNo)
				return nil, nil
			}
		}
		if sentinelDate(scheduled) {
			n.log.Debug("sentinel scheduled date, header change suppressed",
				"orderNo", orderNo, "scheduledDateTime", scheduled)
			return nil, nil
		}
	}

	return &Update{
		Workflow:  wf,
		OrderNo:   orderNo,
		RecordKey: orderNo,
		Entity:    entity.EntityHeader,
		Readiness: entity.ReadinessReady,
		Snapshot: entity.Snapshot{
			UUID:              entity.StringField(change.NewImage, "UUid", ""),
			Housebill:         housebill,
			BillNo:            entity.StringField(change.NewImage, "BillNo", ""),
			ScheduledDateTime: scheduled,
			ETADateTime:       normalizeEventDate(entity.StringField(change.NewImage, "ETADateTime", "")),
		},
	}, nil
}

func (n *Normalizer) normalizeShipper(ctx context.Context, wf entity.Workflow, change entity.ChangeEvent) (*Update, error) {
	if !wf.Tracks(entity.EntityShipper) {
		return nil, nil
	}
	orderNo := entity.StringField(change.NewImage, "FK_ShipOrderNo", "")
	if orderNo == "" {
		return nil, nil
	}

	// Completeness is judged across every shipper row for the order,
	// not just the one that changed
	rows, err := n.shipments.ListShippers(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		rows = []entity.Shipper{{
			OrderNo: orderNo,
			Name:    entity.StringField(change.NewImage, "ShipName", ""),
			City:    entity.StringField(change.NewImage, "ShipCity", ""),
			State:   entity.StringField(change.NewImage, "FK_ShipState", ""),
			Zip:     entity.StringField(change.NewImage, "ShipZip", ""),
			Country: entity.StringField(change.NewImage, "FK_ShipCountry", ""),
		}}
	}

	readiness := entity.ReadinessPending
	if shippersComplete(rows) {
		readiness = entity.ReadinessReady
	}
	first := rows[0]
	return &Update{
		Workflow:  wf,
		OrderNo:   orderNo,
		RecordKey: orderNo,
		Entity:    entity.EntityShipper,
		Readiness: readiness,
		Snapshot: entity.Snapshot{
			ShipName:    first.Name,
			ShipCity:    first.City,
			ShipState:   first.State,
			ShipZip:     first.Zip,
			ShipCountry: first.Country,
		},
	}, nil
}

func (n *Normalizer) normalizeConsignee(ctx context.Context, wf entity.Workflow, change entity.ChangeEvent) (*Update, error) {
	if !wf.Tracks(entity.EntityConsignee) {
		return nil, nil
	}
	orderNo := entity.StringField(change.NewImage, "FK_ConOrderNo", "")
	if orderNo == "" {
		return nil, nil
	}

	rows, err := n.shipments.ListConsignees(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		rows = []entity.Consignee{{
			OrderNo: orderNo,
			City:    entity.StringField(change.NewImage, "ConCity", ""),
			State:   entity.StringField(change.NewImage, "FK_ConState", ""),
			Zip:     entity.StringField(change.NewImage, "ConZip", ""),
			Country: entity.StringField(change.NewImage, "FK_ConCountry", ""),
		}}
	}

	readiness := entity.ReadinessPending
	if consigneesComplete(rows) {
		readiness = entity.ReadinessReady
	}
	first := rows[0]
	return &Update{
		Workflow:  wf,
		OrderNo:   orderNo,
		RecordKey: orderNo,
		Entity:    entity.EntityConsignee,
		Readiness: readiness,
		Snapshot: entity.Snapshot{
			ConCity:    first.City,
			ConState:   first.State,
			ConZip:     first.Zip,
			ConCountry: first.Country,
		},
	}, nil
}

func (n *Normalizer) normalizeMilestone(wf entity.Workflow, change entity.ChangeEvent) (*Update, error) {
	if !wf.Tracks(entity.EntityMilestone) {
		return nil, nil
	}
	orderNo := entity.StringField(change.NewImage, "FK_OrderNo", "")
	if orderNo == "" {
		return nil, nil
	}
	code := entity.StringField(change.NewImage, "FK_OrderStatusId", "")
	if _, ok := lookup.StatusCode(code); !ok {
		n.log.Debug("unrecognized milestone code dropped", "orderNo", orderNo, "statusCode", code)
		return nil, nil
	}

	milestone := entity.Milestone{
		OrderNo:       orderNo,
		OrderStatusID: code,
		EventDateTime: entity.StringField(change.NewImage, "EventDateTime", ""),
		UUID:          entity.StringField(change.NewImage, "UUid", ""),
		ProcessState:  entity.StringField(change.NewImage, "ProcessState", ""),
	}
	if wf.TrackProcessState && milestone.ProcessState != "" && milestone.ProcessState != entity.ProcessStateNotProcessed {
		n.log.Debug("milestone already handled", "orderNo", orderNo, "statusCode", code,
			"processState", milestone.ProcessState)
		return nil, nil
	}

	readiness := entity.ReadinessReady
	if wf.QualifyingMilestone != "" && code != wf.QualifyingMilestone {
		readiness = entity.ReadinessPending
	}

	snap := entity.Snapshot{
		StatusCode:    code,
		EventDateTime: normalizeEventDate(milestone.EventDateTime),
	}
	key := orderNo
	if wf.Initiator == entity.EntityMilestone {
		// one record, and one notification, per milestone code
		key = orderNo + "#" + code
		snap.UUID = milestone.UUID
	}

	return &Update{
		Workflow:  wf,
		OrderNo:   orderNo,
		RecordKey: key,
		Entity:    entity.EntityMilestone,
		Readiness: readiness,
		Snapshot:  snap,
		Milestone: &milestone,
	}, nil
}

func (n *Normalizer) normalizeDocument(ctx context.Context, wf entity.Workflow, change entity.ChangeEvent) (*Update, error) {
	if !wf.Tracks(entity.EntityDocument) {
		return nil, nil
	}
	orderNo := entity.StringField(change.NewImage, "FK_OrderNo", "")
	if orderNo == "" {
		return nil, nil
	}

	update := &Update{
		Workflow:  wf,
		OrderNo:   orderNo,
		RecordKey: orderNo,
		Entity:    entity.EntityDocument,
		Readiness: entity.ReadinessReady,
	}

	header, err := n.shipments.GetHeader(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if header == nil || header.Housebill == "" {
		update.Skip = &SkipOutcome{
			Status:  entity.StatusSkipped,
			Message: "Housebill number is not present for order id " + orderNo,
		}
		return update, nil
	}

	update.Snapshot = entity.Snapshot{
		UUID:      header.UUID,
		Housebill: header.Housebill,
		BillNo:    header.BillNo,
	}
	return update, nil
}

// sentinelDate reports whether a source date value is one of the
// placeholder encodings the warehouse uses for "no real date"
func sentinelDate(s string) bool {
	return s == "" || s == "NULL" || strings.Contains(s, "1900")
}

// normalizeEventDate maps sentinel dates to the literal NA expected by
// subscribers, leaving real dates untouched
func normalizeEventDate(s string) string {
	if sentinelDate(s) {
		return "NA"
	}
	return s
}

func populated(s string) bool {
	return s != "" && s != "NULL"
}

// shippersComplete reports whether every shipper row for the order
// carries a full origin address
func shippersComplete(rows []entity.Shipper) bool {
	if len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		if !populated(r.Name) || !populated(r.City) || !populated(r.State) ||
			!populated(r.Zip) || !populated(r.Country) {
			return false
		}
	}
	return true
}

// consigneesComplete reports whether every consignee row for the order
// carries a full destination address
func consigneesComplete(rows []entity.Consignee) bool {
	if len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		if !populated(r.City) || !populated(r.State) ||
			!populated(r.Zip) || !populated(r.Country) {
			return false
		}
	}
	return true
}
