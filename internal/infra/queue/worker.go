package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// LeadNotifier is told about every newly created lead.
type LeadNotifier interface {
	SendNewLeadAlert(ctx context.Context, event LeadEvent) error
}

type consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Worker drains the lead notification queue. Manual acks: a message is
// only removed once the notifier accepted it.
type Worker struct {
	ch       consumer
	notifier LeadNotifier
	logger   *zap.Logger
	onError  func(service string)
}

func NewWorker(ch *amqp.Channel, notifier LeadNotifier, logger *zap.Logger, onError func(service string)) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onError == nil {
		onError = func(string) {}
	}
	return &Worker{ch: ch, notifier: notifier, logger: logger.Named("lead_worker"), onError: onError}
}

// Start blocks until ctx is done or the delivery channel closes.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.ch.Consume(
		queueName,
		"lead-gateway", // consumer tag
		false,          // auto-ack
		false,          // exclusive
		false,          // no-local
		false,          // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("registering rabbitmq consumer: %w", err)
	}

	w.logger.Info("worker waiting for lead events", zap.String("queue", queueName))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("rabbitmq delivery channel closed")
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var event LeadEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		w.logger.Error("malformed lead event, dead-lettering", zap.Error(err))
		d.Nack(false, false)
		return
	}

	log := w.logger.With(zap.String("event_id", event.EventID), zap.String("lead_id", event.LeadID))

	if err := w.processMessage(ctx, event); err != nil {
		w.onError("smtp")
		log.Error("lead notification failed, dead-lettering", zap.Error(err))
		d.Nack(false, false)
		return
	}

	d.Ack(false)
}

func (w *Worker) processMessage(ctx context.Context, event LeadEvent) error {
	if !event.Created || w.notifier == nil {
		return nil
	}
	return w.notifier.SendNewLeadAlert(ctx, event)
}
