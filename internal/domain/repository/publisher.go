package repository

import (
	"context"

	"shipment-eventing-service/internal/domain/entity"
)

// EventPublisher pushes one payload to one subscriber routing key
type EventPublisher interface {
	Publish(ctx context.Context, payload *entity.Payload, customerID string) error
}

// AlertNotifier reports unexpected infrastructure errors to the
// operational alert channel. Best effort; failures are logged, never
// propagated.
type AlertNotifier interface {
	Alert(ctx context.Context, component, message string)
}
