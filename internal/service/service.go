package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	platformobservability "github.com/shestoi/GoBigTech/payment-core/platform/observability"

	"github.com/shestoi/GoBigTech/payment-core/internal/gateway"
	"github.com/shestoi/GoBigTech/payment-core/internal/metrics"
	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
)

const (
	defaultGatewayTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultHistoryLimit   = 50
	maxHistoryLimit       = 100
	defaultCurrency       = "USD"
)

// Сообщения ответа
const (
	MsgPaymentSucceeded = "Payment processed successfully"
	MsgPaymentRedirect  = "Redirect to payment gateway to complete payment"
	MsgPaymentFailed    = "Payment failed"
	MsgGatewayTimeout   = "Payment gateway timed out"
	MsgAlreadyProcessed = "Payment already processed"
)

// Options параметры PaymentService
type Options struct {
	// GatewayTimeout ограничение на один вызов адаптера; таймаут считается отказом шлюза
	GatewayTimeout time.Duration
	// PublishTimeout ограничение на публикацию одного события
	PublishTimeout time.Duration
	// HistoryLimit размер истории по умолчанию
	HistoryLimit int
	// Now источник времени, по умолчанию time.Now
	Now func() time.Time
}

// PaymentService оркестратор платежей: владеет машиной состояний,
// выбирает шлюз, сохраняет результат и публикует события.
// Единственный код, который меняет статус платежа.
type PaymentService struct {
	repo      repository.PaymentRepository
	gateways  *gateway.Registry
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
	opts      Options

	inflight sync.WaitGroup
}

// NewPaymentService создаёт новый экземпляр PaymentService
func NewPaymentService(
	repo repository.PaymentRepository,
	gateways *gateway.Registry,
	publisher EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts Options,
) *PaymentService {
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = defaultGatewayTimeout
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PaymentService{
		repo:      repo,
		gateways:  gateways,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		tracer:    otel.Tracer("payment-core/service"),
		opts:      opts,
	}
}

// ProcessPaymentInput входные данные для создания платежа
type ProcessPaymentInput struct {
	OrderID      string
	Username     string
	EmailAddress string
	Amount       decimal.Decimal
	Currency     string
	Method       repository.Method
	Gateway      string
	// Data дополнительные параметры для шлюза (ipAddress, locale, bankCode...)
	Data map[string]string
}

// PaymentOutput состояние платежа после операции
type PaymentOutput struct {
	Payment repository.Payment
	Message string
	// Replayed повторный callback по уже завершённому платежу, ничего не изменено
	Replayed bool
}

func (s *PaymentService) now() time.Time {
	return s.opts.Now().UTC()
}

// ProcessPayment создаёт платёж в Processing, вызывает шлюз и сохраняет результат.
// Отказ или недоступность шлюза не ошибка: платёж переходит в Failed.
// Ошибка возвращается только при неверном вводе или сбое хранилища.
func (s *PaymentService) ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*PaymentOutput, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.ProcessPayment",
		trace.WithAttributes(attribute.String("order_id", input.OrderID)))
	defer span.End()
	logger := platformobservability.L(ctx, s.logger)

	if strings.TrimSpace(input.OrderID) == "" || strings.TrimSpace(input.Username) == "" {
		return nil, fmt.Errorf("%w: orderId and username are required", ErrInvalidInput)
	}
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if input.Method == "" {
		return nil, fmt.Errorf("%w: paymentMethod is required", ErrInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	gw, found := s.gateways.Resolve(input.Gateway)
	if !found && input.Gateway != "" {
		logger.Warn("unknown gateway requested, falling back to default",
			zap.String("requested", input.Gateway),
			zap.String("gateway", gw.Name()),
		)
	}

	payment := repository.Payment{
		PaymentID:    uuid.NewString(),
		OrderID:      input.OrderID,
		Username:     input.Username,
		EmailAddress: input.EmailAddress,
		Amount:       input.Amount,
		Currency:     currency,
		Method:       input.Method,
		Gateway:      gw.Name(),
		Status:       repository.StatusProcessing,
		Metadata:     copyMap(input.Data),
		CreatedAt:    s.now(),
	}
	span.SetAttributes(attribute.String("payment_id", payment.PaymentID), attribute.String("gateway", payment.Gateway))

	if err := s.repo.Create(ctx, payment); err != nil {
		logger.Error("failed to create payment", zap.Error(err), zap.String("order_id", input.OrderID))
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	logger.Info("payment created",
		zap.String("payment_id", payment.PaymentID),
		zap.String("order_id", payment.OrderID),
		zap.String("gateway", payment.Gateway),
		zap.String("amount", payment.Amount.String()),
		zap.String("currency", payment.Currency),
	)

	callCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	start := time.Now()
	result, err := gw.ProcessPayment(callCtx, payment, input.Data)
	cancel()
	s.metrics.ObserveGatewayCall(gw.Name(), "process", start, err)

	at := s.now()
	message := MsgPaymentSucceeded
	switch {
	case err != nil:
		message = MsgPaymentFailed + ": " + err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			message = MsgGatewayTimeout
		}
		logger.Error("gateway call failed",
			zap.Error(err),
			zap.String("payment_id", payment.PaymentID),
			zap.String("gateway", gw.Name()),
		)
		_ = payment.MarkFailed(message, at)
	case !result.Success:
		message = result.ErrorMessage
		if message == "" {
			message = MsgPaymentFailed
		}
		_ = payment.MarkFailed(message, at)
	case result.Pending:
		// окончательный результат придёт в callback, статус остаётся Processing
		message = MsgPaymentRedirect
		payment.PaymentURL = result.PaymentURL
		payment.UpdatedAt = &at
	default:
		_ = payment.MarkSucceeded(result.TransactionID, at)
		payment.PaymentURL = result.PaymentURL
	}

	if err := s.repo.Update(ctx, payment); err != nil {
		logger.Error("failed to persist payment result",
			zap.Error(err),
			zap.String("payment_id", payment.PaymentID),
			zap.String("status", string(payment.Status)),
		)
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	s.metrics.ObservePayment(payment.Gateway, string(payment.Status))
	logger.Info("payment processed",
		zap.String("payment_id", payment.PaymentID),
		zap.String("status", string(payment.Status)),
		zap.String("transaction_id", payment.TransactionID),
	)

	s.publishOutcome(ctx, payment)

	return &PaymentOutput{Payment: payment, Message: message}, nil
}

// GetPayment возвращает платёж по id или ErrPaymentNotFound
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (repository.Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Payment{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
		}
		return repository.Payment{}, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// GetPaymentByOrderID возвращает последний платёж заказа или ErrPaymentNotFound
func (s *PaymentService) GetPaymentByOrderID(ctx context.Context, orderID string) (repository.Payment, error) {
	p, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Payment{}, fmt.Errorf("%w: order %s", ErrPaymentNotFound, orderID)
		}
		return repository.Payment{}, fmt.Errorf("failed to get payment by order: %w", err)
	}
	return p, nil
}

// GetPaymentHistory возвращает платежи пользователя, новые первыми.
// limit <= 0 означает значение по умолчанию, сверху ограничен 100.
func (s *PaymentService) GetPaymentHistory(ctx context.Context, username string, limit int) ([]repository.Payment, error) {
	if limit <= 0 {
		limit = s.opts.HistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	payments, err := s.repo.ListByUsername(ctx, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment history: %w", err)
	}
	if payments == nil {
		payments = []repository.Payment{}
	}
	return payments, nil
}

// Wait дожидается публикации событий, запущенных ранее; используется при shutdown
func (s *PaymentService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publishing still in flight: %w", ctx.Err())
	}
}

// publishOutcome публикует событие по итоговому статусу; Processing событий не порождает
func (s *PaymentService) publishOutcome(ctx context.Context, p repository.Payment) {
	switch p.Status {
	case repository.StatusSuccess:
		event := newSucceededEvent(p)
		s.publishAsync(ctx, EventPaymentSucceeded, p.PaymentID, func(ctx context.Context) error {
			return s.publisher.PublishPaymentSucceeded(ctx, event)
		})
	case repository.StatusFailed:
		event := newFailedEvent(p)
		s.publishAsync(ctx, EventPaymentFailed, p.PaymentID, func(ctx context.Context) error {
			return s.publisher.PublishPaymentFailed(ctx, event)
		})
	}
}

// publishAsync fire-and-forget публикация: вызывающий код не ждёт брокер,
// ошибка только логируется
func (s *PaymentService) publishAsync(ctx context.Context, eventType, paymentID string, publish func(context.Context) error) {
	logger := platformobservability.L(ctx, s.logger)
	ctx = context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		pubCtx, cancel := context.WithTimeout(ctx, s.opts.PublishTimeout)
		defer cancel()

		err := publish(pubCtx)
		s.metrics.ObserveEvent(eventType, err)
		if err != nil {
			logger.Error("failed to publish payment event",
				zap.Error(err),
				zap.String("event_type", eventType),
				zap.String("payment_id", paymentID),
			)
		}
	}()
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
