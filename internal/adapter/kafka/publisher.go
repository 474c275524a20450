// Package kafka publishes order lifecycle events to Kafka topics.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/polkiloo/coursemart/internal/domain/model"
)

// Topic suffixes appended to the configured prefix.
const (
	TopicTransitions         = "order.transitions"
	TopicOfferingInvalidated = "offering.invalidated"
	TopicPaymentSucceeded    = "payment.succeeded"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TransitionEvent is published after every committed state change.
type TransitionEvent struct {
	EventID    string    `json:"event_id"`
	OrderID    string    `json:"order_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Rule       int       `json:"rule"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OfferingInvalidatedEvent tells catalog caches to drop a product offering.
type OfferingInvalidatedEvent struct {
	EventID    string    `json:"event_id"`
	ProductID  string    `json:"product_id"`
	CourseID   *string   `json:"course_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentSucceededEvent feeds the owner notification pipeline.
type PaymentSucceededEvent struct {
	EventID           string    `json:"event_id"`
	OrderID           string    `json:"order_id"`
	OwnerID           string    `json:"owner_id"`
	InstallmentID     string    `json:"installment_id"`
	Amount            string    `json:"amount"`
	Currency          string    `json:"currency"`
	ProviderReference string    `json:"provider_reference,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// Publisher implements the event, owner notification and offering invalidation ports.
type Publisher struct {
	writer messageWriter
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher builds a publisher writing to the given brokers.
func NewPublisher(brokers []string, prefix string, logger *slog.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return newPublisher(writer, prefix, logger)
}

func newPublisher(writer messageWriter, prefix string, logger *slog.Logger) *Publisher {
	return &Publisher{writer: writer, prefix: prefix, logger: logger, now: time.Now}
}

// PublishTransition emits the audit record of a transition keyed by order.
func (p *Publisher) PublishTransition(ctx context.Context, change model.StateChange) error {
	return p.publish(ctx, TopicTransitions, change.OrderID, TransitionEvent{
		EventID:    change.ID,
		OrderID:    change.OrderID,
		From:       string(change.From),
		To:         string(change.To),
		Rule:       change.Rule,
		OccurredAt: change.OccurredAt,
	})
}

// PublishOfferingInvalidated announces that the product offering changed.
func (p *Publisher) PublishOfferingInvalidated(ctx context.Context, productID string, courseID *string) error {
	return p.publish(ctx, TopicOfferingInvalidated, productID, OfferingInvalidatedEvent{
		EventID:    uuid.NewString(),
		ProductID:  productID,
		CourseID:   courseID,
		OccurredAt: p.now().UTC(),
	})
}

// NotifyPaymentSucceeded queues the owner notification for a settled installment.
func (p *Publisher) NotifyPaymentSucceeded(ctx context.Context, order *model.Order, inst model.Installment) error {
	return p.publish(ctx, TopicPaymentSucceeded, order.ID, PaymentSucceededEvent{
		EventID:           uuid.NewString(),
		OrderID:           order.ID,
		OwnerID:           order.OwnerID,
		InstallmentID:     inst.ID,
		Amount:            inst.Amount.StringFixed(2),
		Currency:          order.Currency,
		ProviderReference: inst.ProviderReference,
		OccurredAt:        p.now().UTC(),
	})
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) topic(suffix string) string {
	if p.prefix == "" {
		return suffix
	}
	return p.prefix + "." + suffix
}

func (p *Publisher) publish(ctx context.Context, suffix, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", suffix, err)
	}
	topic := p.topic(suffix)
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  p.now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("kafka publish failed",
			slog.String("topic", topic),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
