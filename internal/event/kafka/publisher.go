package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	platformkafka "github.com/shestoi/GoBigTech/payment-core/platform/kafka"
	platformobservability "github.com/shestoi/GoBigTech/payment-core/platform/observability"

	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
	"github.com/shestoi/GoBigTech/payment-core/internal/service"
)

const eventVersion = 1

// MessageWriter часть *kafka.Writer, которая нужна publisher-у
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PaymentEventPublisher реализует service.EventPublisher поверх Kafka.
// Каждый тип события пишется в свой топик, ключ сообщения order_id,
// поэтому события одного заказа попадают в одну партицию.
type PaymentEventPublisher struct {
	logger *zap.Logger
	writer MessageWriter
	topics platformkafka.Topics
	now    func() time.Time
}

// NewPaymentEventPublisher создаёт Kafka publisher событий платежей
func NewPaymentEventPublisher(logger *zap.Logger, writer MessageWriter, topics platformkafka.Topics) *PaymentEventPublisher {
	return &PaymentEventPublisher{
		logger: logger,
		writer: writer,
		topics: topics,
		now:    time.Now,
	}
}

// Close закрывает Kafka writer
func (p *PaymentEventPublisher) Close() error {
	return p.writer.Close()
}

// PublishPaymentSucceeded публикует payment.succeeded
func (p *PaymentEventPublisher) PublishPaymentSucceeded(ctx context.Context, event service.PaymentSucceededEvent) error {
	return p.publish(ctx, p.topics.PaymentSucceeded, service.EventPaymentSucceeded, event.OrderID, event.PaymentID, map[string]any{
		"payment_id":     event.PaymentID,
		"order_id":       event.OrderID,
		"username":       event.Username,
		"email_address":  event.EmailAddress,
		"amount":         repository.AmountString(event.Amount),
		"currency":       event.Currency,
		"payment_method": event.PaymentMethod,
		"gateway":        event.Gateway,
		"transaction_id": event.TransactionID,
		"completed_at":   event.CompletedAt.UTC().Format(time.RFC3339),
	})
}

// PublishPaymentFailed публикует payment.failed
func (p *PaymentEventPublisher) PublishPaymentFailed(ctx context.Context, event service.PaymentFailedEvent) error {
	return p.publish(ctx, p.topics.PaymentFailed, service.EventPaymentFailed, event.OrderID, event.PaymentID, map[string]any{
		"payment_id":     event.PaymentID,
		"order_id":       event.OrderID,
		"username":       event.Username,
		"email_address":  event.EmailAddress,
		"amount":         repository.AmountString(event.Amount),
		"currency":       event.Currency,
		"payment_method": event.PaymentMethod,
		"gateway":        event.Gateway,
		"reason":         event.Reason,
		"failed_at":      event.FailedAt.UTC().Format(time.RFC3339),
	})
}

// PublishPaymentRefunded публикует payment.refunded
func (p *PaymentEventPublisher) PublishPaymentRefunded(ctx context.Context, event service.PaymentRefundedEvent) error {
	return p.publish(ctx, p.topics.PaymentRefunded, service.EventPaymentRefunded, event.OrderID, event.PaymentID, map[string]any{
		"payment_id":     event.PaymentID,
		"order_id":       event.OrderID,
		"username":       event.Username,
		"email_address":  event.EmailAddress,
		"refund_amount":  repository.AmountString(event.RefundAmount),
		"total_refunded": repository.AmountString(event.TotalRefunded),
		"currency":       event.Currency,
		"reason":         event.Reason,
		"full_refund":    event.FullRefund,
		"refunded_at":    event.RefundedAt.UTC().Format(time.RFC3339),
	})
}

func (p *PaymentEventPublisher) publish(ctx context.Context, topic, eventType, orderID, paymentID string, fields map[string]any) error {
	logger := platformobservability.L(ctx, p.logger)

	msg, err := p.buildMessage(topic, eventType, orderID, fields)
	if err != nil {
		logger.Error("failed to marshal payment event",
			zap.Error(err),
			zap.String("event_type", eventType),
			zap.String("payment_id", paymentID),
		)
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error("failed to publish payment event",
			zap.Error(err),
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.String("payment_id", paymentID),
			zap.String("order_id", orderID),
		)
		return fmt.Errorf("failed to write %s to %s: %w", eventType, topic, err)
	}

	logger.Info("payment event published",
		zap.String("topic", topic),
		zap.String("event_type", eventType),
		zap.String("payment_id", paymentID),
		zap.String("order_id", orderID),
	)
	return nil
}

// buildMessage добавляет к полям события конверт event_id/event_type/event_version/occurred_at
func (p *PaymentEventPublisher) buildMessage(topic, eventType, orderID string, fields map[string]any) (kafka.Message, error) {
	eventID := uuid.NewString()
	payload := make(map[string]any, len(fields)+4)
	for k, v := range fields {
		payload[k] = v
	}
	payload["event_id"] = eventID
	payload["event_type"] = eventType
	payload["event_version"] = eventVersion
	payload["occurred_at"] = p.now().UTC().Format(time.RFC3339)

	value, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Topic: topic,
		Key:   []byte(orderID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte(eventID)},
		},
	}, nil
}

// NoopPublisher используется при KAFKA_ENABLED=false: события только пишутся в лог
type NoopPublisher struct {
	logger *zap.Logger
}

// NewNoopPublisher создаёт publisher без брокера
func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

// PublishPaymentSucceeded пишет payment.succeeded в лог
func (p *NoopPublisher) PublishPaymentSucceeded(ctx context.Context, event service.PaymentSucceededEvent) error {
	p.log(ctx, service.EventPaymentSucceeded, event.PaymentID, event.OrderID)
	return nil
}

// PublishPaymentFailed пишет payment.failed в лог
func (p *NoopPublisher) PublishPaymentFailed(ctx context.Context, event service.PaymentFailedEvent) error {
	p.log(ctx, service.EventPaymentFailed, event.PaymentID, event.OrderID)
	return nil
}

// PublishPaymentRefunded пишет payment.refunded в лог
func (p *NoopPublisher) PublishPaymentRefunded(ctx context.Context, event service.PaymentRefundedEvent) error {
	p.log(ctx, service.EventPaymentRefunded, event.PaymentID, event.OrderID)
	return nil
}

func (p *NoopPublisher) log(ctx context.Context, eventType, paymentID, orderID string) {
	platformobservability.L(ctx, p.logger).Info("kafka disabled, payment event not published",
		zap.String("event_type", eventType),
		zap.String("payment_id", paymentID),
		zap.String("order_id", orderID),
	)
}
