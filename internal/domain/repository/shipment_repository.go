package repository

import (
	"context"

	"shipment-eventing-service/internal/domain/entity"
)

// ShipmentRepository reads the shipment source tables. Lookups that
// find nothing return (nil, nil) or an empty slice; absence is a
// business state here, not an error.
type ShipmentRepository interface {
	GetHeader(ctx context.Context, orderNo string) (*entity.ShipmentHeader, error)
	ListShippers(ctx context.Context, orderNo string) ([]entity.Shipper, error)
	ListConsignees(ctx context.Context, orderNo string) ([]entity.Consignee, error)
	GetMilestone(ctx context.Context, orderNo, statusID string) (*entity.Milestone, error)
	SetMilestoneProcessState(ctx context.Context, orderNo, statusID, state string) error
}
