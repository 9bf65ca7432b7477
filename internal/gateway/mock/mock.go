package mock

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shestoi/GoBigTech/payment-core/internal/gateway"
	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
)

// DeclineMessage сообщение при отказе в оплате
const DeclineMessage = "Insufficient funds or payment declined"

// Config настройки mock-шлюза
type Config struct {
	// SuccessRate вероятность успешной оплаты 0..1
	SuccessRate float64 `env:"MOCK_SUCCESS_RATE" envDefault:"0.95"`
	// Latency искусственная задержка ответа
	Latency time.Duration `env:"MOCK_LATENCY" envDefault:"0s"`
	// PaymentURLBase база ссылок для redirect-способов оплаты
	PaymentURLBase string `env:"MOCK_PAYMENT_URL_BASE" envDefault:"https://mock-gateway.com/payment"`
}

// Gateway синхронный шлюз для разработки и тестов
type Gateway struct {
	cfg  Config
	roll func() float64
}

// Option настраивает Gateway
type Option func(*Gateway)

// WithRoll подменяет генератор случайных чисел
func WithRoll(roll func() float64) Option {
	return func(g *Gateway) {
		g.roll = roll
	}
}

// New создаёт mock-шлюз
func New(cfg Config, opts ...Option) *Gateway {
	g := &Gateway{
		cfg:  cfg,
		roll: rand.Float64,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name имя адаптера
func (g *Gateway) Name() string {
	return gateway.NameMock
}

// ProcessPayment решает исход сразу с вероятностью SuccessRate
func (g *Gateway) ProcessPayment(ctx context.Context, payment repository.Payment, data map[string]string) (gateway.PaymentResult, error) {
	if err := g.wait(ctx); err != nil {
		return gateway.PaymentResult{}, err
	}

	if g.roll() >= g.cfg.SuccessRate {
		return gateway.PaymentResult{
			Success:      false,
			ErrorMessage: DeclineMessage,
		}, nil
	}

	url, _ := g.CreatePaymentURL(ctx, payment, data)
	return gateway.PaymentResult{
		Success:       true,
		TransactionID: newTransactionID(),
		PaymentURL:    url,
	}, nil
}

// CreatePaymentURL возвращает ссылку только для redirect-способов оплаты
func (g *Gateway) CreatePaymentURL(ctx context.Context, payment repository.Payment, data map[string]string) (string, error) {
	if !payment.Method.IsRedirect() {
		return "", nil
	}
	return strings.TrimRight(g.cfg.PaymentURLBase, "/") + "/" + payment.PaymentID, nil
}

// VerifyCallback mock-шлюз не присылает уведомлений
func (g *Gateway) VerifyCallback(ctx context.Context, fields map[string]string) (gateway.CallbackResult, error) {
	return gateway.CallbackResult{}, gateway.ErrCallbackNotSupported
}

// ProcessRefund всегда успешен
func (g *Gateway) ProcessRefund(ctx context.Context, payment repository.Payment, amount decimal.Decimal, reason string) (gateway.RefundResult, error) {
	if err := g.wait(ctx); err != nil {
		return gateway.RefundResult{}, err
	}
	return gateway.RefundResult{
		Success:  true,
		RefundID: "RFD_" + newHex16(),
	}, nil
}

func (g *Gateway) wait(ctx context.Context) error {
	if g.cfg.Latency <= 0 {
		return nil
	}
	timer := time.NewTimer(g.cfg.Latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mock gateway: %w", ctx.Err())
	}
}

// newTransactionID формат TXN_ + 16 hex символов в верхнем регистре
func newTransactionID() string {
	return "TXN_" + newHex16()
}

func newHex16() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:16])
}
