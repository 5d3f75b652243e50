package repository

import "context"

// EntitlementRepository resolves which customers may receive events
// for a housebill. An empty result is a legitimate terminal outcome
// for the order, never an error.
type EntitlementRepository interface {
	// AllowedCustomerIDs returns the customer ids permitted by the
	// subscription filter policy
	AllowedCustomerIDs(ctx context.Context) ([]string, error)

	// CustomersForHousebill returns the entitled customer ids for a
	// housebill, restricted to the allowed set
	CustomersForHousebill(ctx context.Context, housebill string, allowed []string) ([]string, error)
}
