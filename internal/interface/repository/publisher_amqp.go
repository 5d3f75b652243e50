package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shipment-eventing-service/internal/domain/entity"
	"shipment-eventing-service/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AmqpPublisher publishes notification payloads to the shipment-events
// exchange and operational alerts to the alerts exchange. Subscribers
// bind on the customer_id header.
type AmqpPublisher struct {
	ch             *amqp.Channel
	eventsExchange string
	alertsExchange string
	logger         logger.Logger
}

// NewAmqpPublisher declares both exchanges and returns the publisher
func NewAmqpPublisher(conn *amqp.Connection, eventsExchange, alertsExchange string, log logger.Logger) (*AmqpPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(eventsExchange, "headers", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare events exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(alertsExchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare alerts exchange: %w", err)
	}

	return &AmqpPublisher{
		ch:             ch,
		eventsExchange: eventsExchange,
		alertsExchange: alertsExchange,
		logger:         log,
	}, nil
}

// Publish sends one payload to one subscriber routing key. Delivery is
// at-least-once per key; subscribers dedupe on the payload id.
func (p *AmqpPublisher) Publish(ctx context.Context, payload *entity.Payload, customerID string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	err = p.ch.PublishWithContext(
		ctx,
		p.eventsExchange,
		customerID,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    payload.ID,
			Timestamp:    time.Now(),
			Headers:      amqp.Table{"customer_id": customerID},
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("Published event",
		"customerId", customerID,
		"trackingNo", payload.TrackingNo,
		"statusCode", payload.StatusCode)
	return nil
}

// Alert reports an unexpected infrastructure error to the operational
// alert channel. Best effort: a failed alert is logged and dropped.
func (p *AmqpPublisher) Alert(ctx context.Context, component, message string) {
	body, _ := json.Marshal(map[string]string{
		"component": component,
		"message":   message,
	})

	err := p.ch.PublishWithContext(
		ctx,
		p.alertsExchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish alert", "component", component, "error", err)
	}
}

// Close releases the channel
func (p *AmqpPublisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
}
