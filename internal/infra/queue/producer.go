package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LeadEvent is published after every successful submission.
type LeadEvent struct {
	EventID    string    `json:"event_id"`
	LeadID     string    `json:"lead_id"`
	Created    bool      `json:"created"`
	Phone      string    `json:"phone"`
	Name       string    `json:"name,omitempty"`
	Email      string    `json:"email,omitempty"`
	FormType   string    `json:"form_type"`
	LeadSource string    `json:"lead_source,omitempty"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// channel is the part of *amqp.Channel the producer uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Producer struct {
	ch channel
}

func NewProducer(ch *amqp.Channel) *Producer {
	return &Producer{ch: ch}
}

func (p *Producer) PublishLeadSubmitted(ctx context.Context, event LeadEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding lead event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.EventID,
			Timestamp:    event.OccurredAt,
			Type:         "lead.submitted",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publishing lead event to rabbitmq: %w", err)
	}
	return nil
}
