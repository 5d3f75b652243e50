package repository

import (
	"context"

	"shipment-eventing-service/internal/domain/entity"
)

// StatusRecordRepository defines the operations on the readiness store.
// Records are keyed by workflow name plus record key, and every
// mutation is attribute-scoped: a merge for one entity type never
// overwrites another entity's slice.
type StatusRecordRepository interface {
	// UpsertEntity merges readiness and snapshot fields for one
	// entity type. When create is true a missing record is created
	// with the workflow's other tracked entities defaulted to
	// PENDING; otherwise a missing record yields (nil, nil) and the
	// merge is dropped. Terminal records are returned unchanged.
	UpsertEntity(ctx context.Context, wf entity.Workflow, key, orderNo string, typ entity.EntityType, readiness entity.Readiness, snap entity.Snapshot, create bool, updatedBy string) (*entity.StatusRecord, error)

	// Get returns (nil, nil) when no record exists
	Get(ctx context.Context, workflow, key string) (*entity.StatusRecord, error)

	// EachByAggregateStatus streams records with the given aggregate
	// status one page at a time until exhausted or fn returns an error
	EachByAggregateStatus(ctx context.Context, status entity.AggregateStatus, pageSize int, fn func(*entity.StatusRecord) error) error

	// TransitionAggregate conditionally moves the aggregate status.
	// Terminal records are left untouched.
	TransitionAggregate(ctx context.Context, workflow, key string, status entity.AggregateStatus, message string, retryDelta int, updatedBy string) error

	// StageDispatch records the resolved routing keys, and the
	// serialized payload when non-empty, for audit and retry
	StageDispatch(ctx context.Context, workflow, key string, customerIDs []string, payloadJSON string, updatedBy string) error

	// Delete removes the record; used when routing resolution fails
	// permanently so a future retrigger starts clean
	Delete(ctx context.Context, workflow, key string) error

	// ResetForRetrigger is the operator escape hatch: every record
	// for the order goes back to PENDING with a zeroed retry count
	ResetForRetrigger(ctx context.Context, workflow, orderNo string, updatedBy string) error
}
