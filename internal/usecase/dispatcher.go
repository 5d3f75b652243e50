package usecase

import (
	"context"
	"fmt"
	"strings"

	"shipment-eventing-service/internal/domain/entity"
	"shipment-eventing-service/internal/domain/repository"
	"shipment-eventing-service/pkg/logger"
	"shipment-eventing-service/pkg/metrics"
)

// Dispatcher fans one payload out to every resolved routing key.
// Delivery is at-least-once: a retried record re-publishes to all of
// its keys.
type Dispatcher struct {
	publisher repository.EventPublisher
	metrics   *metrics.Metrics
	log       logger.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(publisher repository.EventPublisher, m *metrics.Metrics, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		metrics:   m,
		log:       log.With("component", "dispatcher"),
	}
}

// Dispatch publishes the payload to each customer id. Every key is
// attempted even when earlier ones fail; failures are collected into a
// single error so the record stays retryable.
func (d *Dispatcher) Dispatch(ctx context.Context, payload *entity.Payload, customerIDs []string) error {
	var failed []string
	for _, id := range customerIDs {
		if err := d.publisher.Publish(ctx, payload, id); err != nil {
			d.log.Error("publish failed",
				"customerId", id,
				"trackingNo", payload.TrackingNo,
				"error", err)
			d.metrics.ErrorsCount.WithLabelValues("publish").Inc()
			failed = append(failed, id)
			continue
		}
		d.metrics.EventsDispatched.Inc()
		d.log.Info("event published",
			"customerId", id,
			"trackingNo", payload.TrackingNo,
			"statusCode", payload.StatusCode)
	}
	if len(failed) > 0 {
		return fmt.Errorf("publish failed for customers %s", strings.Join(failed, ", "))
	}
	return nil
}
