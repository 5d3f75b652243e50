package repository

import (
	"context"
	"time"

	"shipment-eventing-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormEntitlementRepository implements the EntitlementRepository
// interface over the entitlement and filter-policy tables
type GormEntitlementRepository struct {
	db *gorm.DB
}

// NewGormEntitlementRepository creates a new GORM entitlement repository
func NewGormEntitlementRepository(db *gorm.DB) repository.EntitlementRepository {
	return &GormEntitlementRepository{
		db: db,
	}
}

// Entitlements GORM model for database mapping
type Entitlements struct {
	ID              uint   `gorm:"primaryKey"`
	HouseBillNumber string `gorm:"column:house_bill_number;index"`
	CustomerID      string `gorm:"column:customer_id"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName overrides the default table name
func (Entitlements) TableName() string {
	return "m_entitlements"
}

// FilterPolicies GORM model for the subscription filter policy
type FilterPolicies struct {
	ID         uint   `gorm:"primaryKey"`
	CustomerID string `gorm:"column:customer_id;unique"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName overrides the default table name
func (FilterPolicies) TableName() string {
	return "m_filter_policies"
}

// AllowedCustomerIDs returns the customer ids permitted by the
// subscription filter policy
func (r *GormEntitlementRepository) AllowedCustomerIDs(ctx context.Context) ([]string, error) {
	var policies []FilterPolicies
	result := r.db.WithContext(ctx).Find(&policies)
	if result.Error != nil {
		return nil, result.Error
	}

	ids := make([]string, 0, len(policies))
	for _, p := range policies {
		ids = append(ids, p.CustomerID)
	}
	return ids, nil
}

// CustomersForHousebill returns the entitled customer ids for a
// housebill, restricted to the allowed set. An empty result means the
// customer is not ours; callers treat that as a terminal business
// exclusion, not an error.
func (r *GormEntitlementRepository) CustomersForHousebill(ctx context.Context, housebill string, allowed []string) ([]string, error) {
	var entitlements []Entitlements
	query := r.db.WithContext(ctx).Where("house_bill_number = ?", housebill)
	if len(allowed) > 0 {
		query = query.Where("customer_id IN ?", allowed)
	}
	result := query.Find(&entitlements)
	if result.Error != nil {
		return nil, result.Error
	}

	ids := make([]string, 0, len(entitlements))
	for _, e := range entitlements {
		ids = append(ids, e.CustomerID)
	}
	return ids, nil
}
