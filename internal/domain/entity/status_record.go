package entity

import "time"

// AggregateStatus is the coarse status of a StatusRecord
type AggregateStatus string

const (
	StatusPending AggregateStatus = "PENDING"
	StatusReady   AggregateStatus = "READY"
	StatusSent    AggregateStatus = "SENT"
	StatusSkipped AggregateStatus = "SKIPPED"
	StatusFailed  AggregateStatus = "FAILED"
)

// Terminal reports whether ordinary merges and sweeps may no longer
// change the aggregate status. Only an operator retrigger resets it.
func (s AggregateStatus) Terminal() bool {
	return s == StatusSent || s == StatusSkipped || s == StatusFailed
}

// Readiness is the per-entity partial status
type Readiness string

const (
	ReadinessPending Readiness = "PENDING"
	ReadinessReady   Readiness = "READY"
)

// EntityType names one tracked slice of a StatusRecord
type EntityType string

const (
	EntityHeader    EntityType = "Header"
	EntityShipper   EntityType = "Shipper"
	EntityConsignee EntityType = "Consignee"
	EntityMilestone EntityType = "Milestone"
	EntityDocument  EntityType = "Document"
)

// Snapshot holds the denormalized source fields copied into the
// StatusRecord at the moment each entity's readiness was observed.
// Names mirror the source tables so audit reads stay unambiguous.
type Snapshot struct {
	UUID              string `bson:"uuid,omitempty"`
	Housebill         string `bson:"housebill,omitempty"`
	BillNo            string `bson:"billNo,omitempty"`
	ScheduledDateTime string `bson:"scheduledDateTime,omitempty"`
	ETADateTime       string `bson:"etaDateTime,omitempty"`
	ShipName          string `bson:"shipName,omitempty"`
	ShipCity          string `bson:"shipCity,omitempty"`
	ShipState         string `bson:"shipState,omitempty"`
	ShipZip           string `bson:"shipZip,omitempty"`
	ShipCountry       string `bson:"shipCountry,omitempty"`
	ConCity           string `bson:"conCity,omitempty"`
	ConState          string `bson:"conState,omitempty"`
	ConZip            string `bson:"conZip,omitempty"`
	ConCountry        string `bson:"conCountry,omitempty"`
	StatusCode        string `bson:"statusCode,omitempty"`
	EventDateTime     string `bson:"eventDateTime,omitempty"`
}

// StatusRecord is the reconciliation state for one order under one
// workflow. RecordKey is the order number for readiness-gated
// workflows; the milestone workflow appends the status code so each
// milestone gets its own record.
type StatusRecord struct {
	RecordKey       string                   `bson:"recordKey"`
	OrderNo         string                   `bson:"orderNo"`
	Workflow        string                   `bson:"workflow"`
	AggregateStatus AggregateStatus          `bson:"aggregateStatus"`
	EntityStatuses  map[EntityType]Readiness `bson:"entityStatuses"`
	Snapshot        Snapshot                 `bson:"snapshot"`
	CustomerIDs     []string                 `bson:"customerIds,omitempty"`
	RetryCount      int                      `bson:"retryCount"`
	Message         string                   `bson:"message,omitempty"`
	Payload         string                   `bson:"payload,omitempty"`
	CreatedAt       time.Time                `bson:"createdAt"`
	LastUpdatedAt   time.Time                `bson:"lastUpdatedAt"`
	LastUpdatedBy   string                   `bson:"lastUpdatedBy"`
}

// AllReady reports whether every tracked entity has reached READY
func (r *StatusRecord) AllReady() bool {
	if len(r.EntityStatuses) == 0 {
		return false
	}
	for _, s := range r.EntityStatuses {
		if s != ReadinessReady {
			return false
		}
	}
	return true
}

// PendingEntities returns the tracked entities still PENDING, in a
// stable order
func (r *StatusRecord) PendingEntities() []EntityType {
	order := []EntityType{EntityHeader, EntityShipper, EntityConsignee, EntityMilestone, EntityDocument}
	var pending []EntityType
	for _, e := range order {
		if s, ok := r.EntityStatuses[e]; ok && s != ReadinessReady {
			pending = append(pending, e)
		}
	}
	return pending
}
