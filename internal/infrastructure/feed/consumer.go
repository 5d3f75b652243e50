package feed

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"shipment-eventing-service/internal/domain/entity"
	"shipment-eventing-service/internal/domain/repository"
	"shipment-eventing-service/internal/usecase"
	"shipment-eventing-service/pkg/logger"
	"shipment-eventing-service/pkg/metrics"
)

// Consumer drains the change-feed queue and drives each record through
// normalization and reconciliation for every workflow. One bad record
// never blocks the rest of its batch; missed or failed records are
// healed by the sweeper.
type Consumer struct {
	conn       *amqp.Connection
	queue      string
	normalizer *usecase.Normalizer
	engine     *usecase.Reconciler
	alerts     repository.AlertNotifier
	metrics    *metrics.Metrics
	workflows  []entity.Workflow
	log        logger.Logger
}

// NewConsumer creates a change-feed consumer
func NewConsumer(
	conn *amqp.Connection,
	queue string,
	normalizer *usecase.Normalizer,
	engine *usecase.Reconciler,
	alerts repository.AlertNotifier,
	m *metrics.Metrics,
	workflows []entity.Workflow,
	log logger.Logger,
) *Consumer {
	return &Consumer{
		conn:       conn,
		queue:      queue,
		normalizer: normalizer,
		engine:     engine,
		alerts:     alerts,
		metrics:    m,
		workflows:  workflows,
		log:        log.With("component", "feed-consumer"),
	}
}

// Start declares the queue and consumes until the context is done.
// Batches are acked after processing; a batch that cannot even be
// decoded is dead-lettered rather than redelivered forever.
func (c *Consumer) Start(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	q, err := ch.QueueDeclare(c.queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.log.Info("consuming change feed", "queue", q.Name)
	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					c.log.Warn("delivery channel closed")
					return
				}
				c.handle(ctx, d)
			}
		}
	}()
	return nil
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var batch entity.ChangeBatch
	if err := json.Unmarshal(d.Body, &batch); err != nil {
		c.log.Error("undecodable change batch dropped", "error", err)
		c.metrics.ErrorsCount.WithLabelValues("decode").Inc()
		_ = d.Nack(false, false)
		return
	}

	for _, record := range batch.Records {
		for _, wf := range c.workflows {
			update, err := c.normalizer.Normalize(ctx, wf, record)
			if err != nil {
				c.report(ctx, wf, record, err)
				continue
			}
			if update == nil {
				continue
			}
			if err := c.engine.Apply(ctx, update); err != nil {
				c.report(ctx, wf, record, err)
			}
		}
	}
	_ = d.Ack(false)
}

// report logs one record's failure and moves on; the sweeper picks up
// whatever state the record was left in
func (c *Consumer) report(ctx context.Context, wf entity.Workflow, record entity.ChangeEvent, err error) {
	c.log.Error("change record failed",
		"workflow", wf.Name,
		"sourceTable", record.SourceTable,
		"op", record.Op,
		"error", err)
	c.metrics.ErrorsCount.WithLabelValues("consume").Inc()
	c.alerts.Alert(ctx, "feed-consumer", fmt.Sprintf("change record failed for workflow %s: %v", wf.Name, err))
}
