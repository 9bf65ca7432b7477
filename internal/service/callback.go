package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	platformobservability "github.com/shestoi/GoBigTech/payment-core/platform/observability"

	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
)

// HandleCallback обрабатывает уведомление провайдера о результате redirect-платежа.
//
// Подпись проверяется до любого разбора результата. Повторное уведомление
// по уже завершённому платежу ничего не меняет и событие не публикует.
// Параллельные уведомления по одному платежу не сериализуются: побеждает последняя запись.
func (s *PaymentService) HandleCallback(ctx context.Context, gatewayName string, fields map[string]string) (*PaymentOutput, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.HandleCallback",
		trace.WithAttributes(attribute.String("gateway", gatewayName)))
	defer span.End()
	logger := platformobservability.L(ctx, s.logger).With(zap.String("gateway", gatewayName))

	gw, ok := s.gateways.Lookup(gatewayName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, gatewayName)
	}

	start := time.Now()
	result, err := gw.VerifyCallback(ctx, fields)
	s.metrics.ObserveGatewayCall(gw.Name(), "verify_callback", start, err)
	if err != nil {
		s.metrics.ObserveCallback(gw.Name(), "error")
		return nil, fmt.Errorf("failed to verify callback: %w", err)
	}

	if !result.Verified {
		logger.Warn("callback signature mismatch",
			zap.Bool("fraud_signal", true),
			zap.String("message", result.ErrorMessage),
		)
		s.metrics.ObserveCallback(gw.Name(), "invalid_signature")
		return nil, ErrInvalidSignature
	}

	span.SetAttributes(attribute.String("payment_id", result.PaymentID))
	logger = logger.With(zap.String("payment_id", result.PaymentID))

	payment, err := s.GetPayment(ctx, result.PaymentID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			s.metrics.ObserveCallback(gw.Name(), "not_found")
		}
		return nil, err
	}
	if payment.Gateway != gw.Name() {
		logger.Warn("callback gateway does not match payment gateway",
			zap.String("payment_gateway", payment.Gateway),
		)
		s.metrics.ObserveCallback(gw.Name(), "not_found")
		return nil, fmt.Errorf("%w: %s via %s", ErrPaymentNotFound, result.PaymentID, gw.Name())
	}

	if payment.Status != repository.StatusProcessing {
		logger.Info("duplicate callback ignored", zap.String("status", string(payment.Status)))
		s.metrics.ObserveCallback(gw.Name(), "duplicate")
		return &PaymentOutput{Payment: payment, Message: MsgAlreadyProcessed, Replayed: true}, nil
	}

	if result.Amount != nil && !result.Amount.Equal(payment.Amount) {
		logger.Warn("callback amount mismatch",
			zap.Bool("fraud_signal", true),
			zap.String("expected", payment.Amount.String()),
			zap.String("received", result.Amount.String()),
		)
		s.metrics.ObserveCallback(gw.Name(), "amount_mismatch")
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrCallbackAmountMismatch, payment.Amount, result.Amount)
	}

	at := s.now()
	message := MsgPaymentSucceeded
	if result.Success {
		err = payment.MarkSucceeded(result.TransactionID, at)
	} else {
		message = result.ErrorMessage
		if message == "" {
			message = MsgPaymentFailed
		}
		if result.TransactionID != "" {
			payment.TransactionID = result.TransactionID
		}
		err = payment.MarkFailed(message, at)
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, payment); err != nil {
		logger.Error("failed to persist callback result", zap.Error(err))
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	s.metrics.ObserveCallback(gw.Name(), string(payment.Status))
	s.metrics.ObservePayment(payment.Gateway, string(payment.Status))
	logger.Info("callback applied",
		zap.String("status", string(payment.Status)),
		zap.String("transaction_id", payment.TransactionID),
	)

	s.publishOutcome(ctx, payment)

	return &PaymentOutput{Payment: payment, Message: message}, nil
}
