package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	platformobservability "github.com/shestoi/GoBigTech/payment-core/platform/observability"

	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
)

// RefundInput входные данные возврата
type RefundInput struct {
	PaymentID string
	// Amount nil означает возврат всего остатка
	Amount *decimal.Decimal
	Reason string
}

// RefundPayment проводит полный или частичный возврат.
//
// Сумма больше остатка отклоняется (ErrRefundExceedsBalance), а не урезается.
// Если адаптер не поддерживает возвраты, возврат учитывается локально.
// Если провайдер отклонил возврат, не ответил или его шлюз больше не зарегистрирован,
// платёж не меняется (ErrRefundRejected).
func (s *PaymentService) RefundPayment(ctx context.Context, input RefundInput) (*PaymentOutput, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.RefundPayment",
		trace.WithAttributes(attribute.String("payment_id", input.PaymentID)))
	defer span.End()
	logger := platformobservability.L(ctx, s.logger).With(zap.String("payment_id", input.PaymentID))

	payment, err := s.GetPayment(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}

	if !payment.Status.Refundable() {
		return nil, fmt.Errorf("%w: status %s", ErrNotRefundable, payment.Status)
	}

	remaining := payment.RemainingBalance()
	amount := remaining
	if input.Amount != nil {
		amount = *input.Amount
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if amount.GreaterThan(remaining) {
		return nil, fmt.Errorf("%w: requested %s, remaining %s", ErrRefundExceedsBalance, amount, remaining)
	}

	// возврат идёт только через шлюз, проводивший платёж; fallback здесь недопустим
	gw, found := s.gateways.Lookup(payment.Gateway)
	if !found {
		logger.Error("payment gateway is not registered, refund rejected", zap.String("gateway", payment.Gateway))
		s.metrics.ObserveRefund(payment.Gateway, "rejected")
		return nil, fmt.Errorf("%w: %w: %s", ErrRefundRejected, ErrUnknownGateway, payment.Gateway)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	start := time.Now()
	result, err := gw.ProcessRefund(callCtx, payment, amount, input.Reason)
	cancel()
	s.metrics.ObserveGatewayCall(gw.Name(), "refund", start, err)

	localOnly := false
	switch {
	case err != nil:
		logger.Error("gateway refund call failed", zap.Error(err), zap.String("gateway", gw.Name()))
		s.metrics.ObserveRefund(gw.Name(), "rejected")
		return nil, fmt.Errorf("%w: %v", ErrRefundRejected, err)
	case result.Success:
	case result.Unsupported:
		localOnly = true
		logger.Warn("gateway does not support refunds, recording refund locally",
			zap.String("gateway", gw.Name()),
			zap.String("gateway_message", result.ErrorMessage),
		)
	default:
		logger.Warn("gateway declined refund",
			zap.String("gateway", gw.Name()),
			zap.String("gateway_message", result.ErrorMessage),
		)
		s.metrics.ObserveRefund(gw.Name(), "rejected")
		return nil, fmt.Errorf("%w: %s", ErrRefundRejected, result.ErrorMessage)
	}

	if err := payment.ApplyRefund(amount, input.Reason, s.now()); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, payment); err != nil {
		// провайдер уже вернул деньги, а локальная запись не обновилась
		logger.Error("failed to persist refund",
			zap.Error(err),
			zap.String("amount", amount.String()),
			zap.Bool("gateway_refunded", result.Success),
		)
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	outcome := "refunded"
	if localOnly {
		outcome = "local_only"
	}
	s.metrics.ObserveRefund(gw.Name(), outcome)

	logger.Info("refund processed",
		zap.String("amount", amount.String()),
		zap.String("total_refunded", payment.TotalRefunded().String()),
		zap.String("status", string(payment.Status)),
		zap.Bool("local_only", localOnly),
	)

	event := newRefundedEvent(payment, amount)
	s.publishAsync(ctx, EventPaymentRefunded, payment.PaymentID, func(ctx context.Context) error {
		return s.publisher.PublishPaymentRefunded(ctx, event)
	})

	message := fmt.Sprintf("Refund of %s %s processed successfully", repository.AmountString(amount), payment.Currency)
	if localOnly {
		message += " (recorded locally, gateway refund not supported)"
	}
	return &PaymentOutput{Payment: payment, Message: message}, nil
}
