package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"shipment-eventing-service/internal/domain/entity"
	"shipment-eventing-service/internal/domain/repository"
	"shipment-eventing-service/pkg/logger"
	"shipment-eventing-service/pkg/lookup"
)

// Subscribers key everything off the housebill; the retailer moniker
// is fixed for this integration.
const (
	identifierNA    = "NA"
	retailerMoniker = "dell"
)

// PayloadBuilder assembles the outbound notification for a record that
// has reached READY. Depending on the workflow it reads either the
// snapshot captured at merge time or the source tables directly.
type PayloadBuilder struct {
	shipments repository.ShipmentRepository
	documents repository.DocumentRepository
	docType   string
	log       logger.Logger
}

// NewPayloadBuilder creates a new payload builder. documents may be nil
// when no workflow attaches a proof-of-delivery link.
func NewPayloadBuilder(shipments repository.ShipmentRepository, documents repository.DocumentRepository, docType string, log logger.Logger) *PayloadBuilder {
	return &PayloadBuilder{
		shipments: shipments,
		documents: documents,
		docType:   docType,
		log:       log.With("component", "payload-builder"),
	}
}

// Build produces a validated payload for the record, or an error when
// required inputs are missing. A *entity.ValidationError reports every
// missing field at once.
func (b *PayloadBuilder) Build(ctx context.Context, wf entity.Workflow, record *entity.StatusRecord) (*entity.Payload, error) {
	var payload *entity.Payload
	var err error
	switch wf.BuildMode {
	case entity.BuildFromSnapshot:
		payload = b.buildFromSnapshot(wf, record)
	default:
		payload, err = b.buildFromSource(ctx, wf, record)
		if err != nil {
			return nil, err
		}
	}

	if wf.RequireVpod {
		url, err := b.signedDocumentURL(ctx, payload.TrackingNo)
		if err != nil {
			return nil, err
		}
		payload.Vpod = url
	}

	if err := payload.Validate(wf.RequireVpod); err != nil {
		return nil, err
	}
	return payload, nil
}

func (b *PayloadBuilder) buildFromSnapshot(wf entity.Workflow, record *entity.StatusRecord) *entity.Payload {
	snap := record.Snapshot

	statusCode := wf.StatusCode
	if statusCode == "" {
		statusCode = snap.StatusCode
	}
	lastUpdate := snap.EventDateTime
	if lastUpdate == "" {
		lastUpdate = snap.ScheduledDateTime
	}

	p := &entity.Payload{
		ID:                    snap.UUID,
		TrackingNo:            snap.Housebill,
		Carrier:               snap.ShipName,
		StatusCode:            statusCode,
		StatusDescription:     b.describe(wf, statusCode),
		LastUpdateDate:        lastUpdate,
		EstimatedDeliveryDate: normalizeEventDate(snap.ETADateTime),
		Identifier:            identifierNA,
		RetailerMoniker:       retailerMoniker,
		OriginCity:            snap.ShipCity,
		OriginState:           snap.ShipState,
		OriginZip:             snap.ShipZip,
		OriginCountryCode:     snap.ShipCountry,
		DestCity:              snap.ConCity,
		DestState:             snap.ConState,
		DestZip:               snap.ConZip,
		DestCountryCode:       snap.ConCountry,
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	b.setEventLocation(p, statusCode)
	return p
}

func (b *PayloadBuilder) buildFromSource(ctx context.Context, wf entity.Workflow, record *entity.StatusRecord) (*entity.Payload, error) {
	orderNo := record.OrderNo

	header, err := b.shipments.GetHeader(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if header == nil || header.Housebill == "" {
		return nil, fmt.Errorf("header not populated for order %s", orderNo)
	}
	shippers, err := b.shipments.ListShippers(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if len(shippers) == 0 {
		return nil, fmt.Errorf("shipper not populated for order %s", orderNo)
	}
	consignees, err := b.shipments.ListConsignees(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if len(consignees) == 0 {
		return nil, fmt.Errorf("consignee not populated for order %s", orderNo)
	}

	code := wf.QualifyingMilestone
	if code == "" {
		code = record.Snapshot.StatusCode
	}
	milestone, err := b.shipments.GetMilestone(ctx, orderNo, code)
	if err != nil {
		return nil, err
	}
	if milestone == nil {
		return nil, fmt.Errorf("milestone %s not populated for order %s", code, orderNo)
	}

	statusCode := wf.StatusCode
	if statusCode == "" {
		statusCode = milestone.OrderStatusID
	}

	shipper := shippers[0]
	consignee := consignees[0]
	p := &entity.Payload{
		ID:                    record.Snapshot.UUID,
		TrackingNo:            header.Housebill,
		Carrier:               shipper.Name,
		StatusCode:            statusCode,
		StatusDescription:     b.describe(wf, statusCode),
		LastUpdateDate:        normalizeEventDate(milestone.EventDateTime),
		EstimatedDeliveryDate: normalizeEventDate(header.ETADateTime),
		Identifier:            identifierNA,
		RetailerMoniker:       retailerMoniker,
		OriginCity:            shipper.City,
		OriginState:           shipper.State,
		OriginZip:             shipper.Zip,
		OriginCountryCode:     shipper.Country,
		DestCity:              consignee.City,
		DestState:             consignee.State,
		DestZip:               consignee.Zip,
		DestCountryCode:       consignee.Country,
	}
	if p.ID == "" {
		p.ID = milestone.UUID
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	b.setEventLocation(p, statusCode)
	return p, nil
}

// setEventLocation copies the origin or destination address into the
// event fields: stop sequence 1 means the event happened at the
// shipper, anything else at the consignee.
func (b *PayloadBuilder) setEventLocation(p *entity.Payload, statusCode string) {
	if lookup.StopSequence(statusCode) == 1 {
		p.EventCity = p.OriginCity
		p.EventState = p.OriginState
		p.EventZip = p.OriginZip
		p.EventCountryCode = p.OriginCountryCode
		return
	}
	p.EventCity = p.DestCity
	p.EventState = p.DestState
	p.EventZip = p.DestZip
	p.EventCountryCode = p.DestCountryCode
}

func (b *PayloadBuilder) describe(wf entity.Workflow, statusCode string) string {
	if wf.StatusDescription != "" {
		return wf.StatusDescription
	}
	info, ok := lookup.StatusCode(statusCode)
	if !ok {
		return ""
	}
	return info.Description
}

func (b *PayloadBuilder) signedDocumentURL(ctx context.Context, housebill string) (string, error) {
	if b.documents == nil {
		return "", fmt.Errorf("document retrieval not configured")
	}
	doc, err := b.documents.FetchDocument(ctx, housebill, b.docType)
	if err != nil {
		return "", fmt.Errorf("fetch document for housebill %s: %w", housebill, err)
	}
	url, err := b.documents.StoreAndSign(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("store document for housebill %s: %w", housebill, err)
	}
	return url, nil
}
