package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/GoBigTech/payment-core/internal/gateway"
	gatewaymocks "github.com/shestoi/GoBigTech/payment-core/internal/gateway/mocks"
	"github.com/shestoi/GoBigTech/payment-core/internal/gateway/vnpay"
	"github.com/shestoi/GoBigTech/payment-core/internal/metrics"
	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
	"github.com/shestoi/GoBigTech/payment-core/internal/repository/memory"
	repoMocks "github.com/shestoi/GoBigTech/payment-core/internal/repository/mocks"
	"github.com/shestoi/GoBigTech/payment-core/internal/service"
	"github.com/shestoi/GoBigTech/payment-core/internal/service/mocks"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *service.PaymentService
	repo      *memory.MemoryRepository
	gw        *gatewaymocks.Gateway
	publisher *mocks.EventPublisher
}

func newFixture(t *testing.T, gatewayName string) *fixture {
	t.Helper()

	gw := gatewaymocks.NewGateway(t)
	gw.On("Name").Return(gatewayName)

	repo := memory.NewMemoryRepository(repository.DefaultTTL)
	publisher := mocks.NewEventPublisher(t)
	svc := service.NewPaymentService(
		repo,
		gateway.NewRegistry(gw),
		publisher,
		metrics.New(prometheus.NewRegistry()),
		zap.NewNop(),
		service.Options{
			GatewayTimeout: 50 * time.Millisecond,
			Now:            func() time.Time { return fixedNow },
		},
	)

	return &fixture{svc: svc, repo: repo, gw: gw, publisher: publisher}
}

// drain дожидается асинхронных публикаций перед проверкой ожиданий моков
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.svc.Wait(ctx))
}

func paymentInput(orderID string, amount int64) service.ProcessPaymentInput {
	return service.ProcessPaymentInput{
		OrderID:      orderID,
		Username:     "alice",
		EmailAddress: "alice@example.com",
		Amount:       decimal.NewFromInt(amount),
		Currency:     "usd",
		Method:       repository.MethodCreditCard,
		Gateway:      gateway.NameMock,
	}
}

// succeed создаёт платёж в статусе Success через mock-шлюз
func (f *fixture) succeed(t *testing.T, orderID string, amount int64) repository.Payment {
	t.Helper()
	ctx := context.Background()

	f.gw.On("ProcessPayment", mock.Anything, mock.MatchedBy(func(p repository.Payment) bool {
		return p.OrderID == orderID
	}), mock.Anything).Return(gateway.PaymentResult{Success: true, TransactionID: "TXN_" + orderID}, nil).Once()
	f.publisher.On("PublishPaymentSucceeded", mock.Anything, mock.MatchedBy(func(e service.PaymentSucceededEvent) bool {
		return e.OrderID == orderID
	})).Return(nil).Once()

	out, err := f.svc.ProcessPayment(ctx, paymentInput(orderID, amount))
	require.NoError(t, err)
	require.Equal(t, repository.StatusSuccess, out.Payment.Status)
	f.drain(t)
	return out.Payment
}

func TestPaymentService_ProcessPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("empty order id returns ErrInvalidInput, nothing stored", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		input := paymentInput("", 100)

		// Act
		out, err := f.svc.ProcessPayment(ctx, input)

		// Assert
		require.ErrorIs(t, err, service.ErrInvalidInput)
		require.Nil(t, out)
		f.gw.AssertNotCalled(t, "ProcessPayment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("non-positive amount returns ErrInvalidAmount", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)

		// Act
		_, errZero := f.svc.ProcessPayment(ctx, paymentInput("order-0", 0))
		_, errNeg := f.svc.ProcessPayment(ctx, paymentInput("order-0", -5))

		// Assert
		require.ErrorIs(t, errZero, service.ErrInvalidAmount)
		require.ErrorIs(t, errNeg, service.ErrInvalidAmount)
		_, err := f.repo.GetByOrderID(ctx, "order-0")
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("gateway success stores Success and publishes succeeded event", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		f.gw.On("ProcessPayment", mock.Anything, mock.MatchedBy(func(p repository.Payment) bool {
			return p.Status == repository.StatusProcessing && p.PaymentID != ""
		}), mock.Anything).Return(gateway.PaymentResult{Success: true, TransactionID: "TXN_ABC"}, nil).Once()
		f.publisher.On("PublishPaymentSucceeded", mock.Anything, mock.MatchedBy(func(e service.PaymentSucceededEvent) bool {
			return e.OrderID == "order-1" &&
				e.TransactionID == "TXN_ABC" &&
				e.Amount.Equal(decimal.NewFromInt(100)) &&
				e.CompletedAt.Equal(fixedNow)
		})).Return(nil).Once()

		// Act
		out, err := f.svc.ProcessPayment(ctx, paymentInput("order-1", 100))
		f.drain(t)

		// Assert
		require.NoError(t, err)
		require.Equal(t, service.MsgPaymentSucceeded, out.Message)
		require.Equal(t, repository.StatusSuccess, out.Payment.Status)
		require.Equal(t, "TXN_ABC", out.Payment.TransactionID)
		require.Equal(t, "USD", out.Payment.Currency)
		require.NotNil(t, out.Payment.CompletedAt)

		stored, err := f.repo.GetByID(ctx, out.Payment.PaymentID)
		require.NoError(t, err)
		require.Equal(t, repository.StatusSuccess, stored.Status)
	})

	t.Run("gateway decline stores Failed with reason and publishes failed event", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		f.gw.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
			Return(gateway.PaymentResult{Success: false, ErrorMessage: "Insufficient funds"}, nil).Once()
		f.publisher.On("PublishPaymentFailed", mock.Anything, mock.MatchedBy(func(e service.PaymentFailedEvent) bool {
			return e.OrderID == "order-2" && e.Reason == "Insufficient funds"
		})).Return(nil).Once()

		// Act
		out, err := f.svc.ProcessPayment(ctx, paymentInput("order-2", 100))
		f.drain(t)

		// Assert
		require.NoError(t, err)
		require.Equal(t, repository.StatusFailed, out.Payment.Status)
		require.Equal(t, "Insufficient funds", out.Message)
		require.Equal(t, "Insufficient funds", out.Payment.FailureReason)
		require.Nil(t, out.Payment.CompletedAt)
	})

	t.Run("gateway error is a failure, not an error", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		f.gw.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
			Return(gateway.PaymentResult{}, errors.New("connection refused")).Once()
		f.publisher.On("PublishPaymentFailed", mock.Anything, mock.Anything).Return(nil).Once()

		// Act
		out, err := f.svc.ProcessPayment(ctx, paymentInput("order-3", 100))
		f.drain(t)

		// Assert
		require.NoError(t, err)
		require.Equal(t, repository.StatusFailed, out.Payment.Status)
		require.Equal(t, "Payment failed: connection refused", out.Message)
	})

	t.Run("gateway timeout is a failure", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		f.gw.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
			Return(func(ctx context.Context, _ repository.Payment, _ map[string]string) (gateway.PaymentResult, error) {
				<-ctx.Done()
				return gateway.PaymentResult{}, ctx.Err()
			}).Once()
		f.publisher.On("PublishPaymentFailed", mock.Anything, mock.MatchedBy(func(e service.PaymentFailedEvent) bool {
			return e.Reason == service.MsgGatewayTimeout
		})).Return(nil).Once()

		// Act
		out, err := f.svc.ProcessPayment(ctx, paymentInput("order-4", 100))
		f.drain(t)

		// Assert
		require.NoError(t, err)
		require.Equal(t, repository.StatusFailed, out.Payment.Status)
		require.Equal(t, service.MsgGatewayTimeout, out.Message)
	})

	t.Run("redirect payment stays Processing and publishes nothing", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameVNPay)
		f.gw.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
			Return(gateway.PaymentResult{Success: true, Pending: true, PaymentURL: "https://pay.example/redirect"}, nil).Once()
		input := paymentInput("order-5", 100000)
		input.Gateway = gateway.NameVNPay
		input.Method = repository.MethodVNPay

		// Act
		out, err := f.svc.ProcessPayment(ctx, input)
		f.drain(t)

		// Assert
		require.NoError(t, err)
		require.Equal(t, repository.StatusProcessing, out.Payment.Status)
		require.Equal(t, "https://pay.example/redirect", out.Payment.PaymentURL)
		require.Equal(t, service.MsgPaymentRedirect, out.Message)
		f.publisher.AssertNotCalled(t, "PublishPaymentSucceeded", mock.Anything, mock.Anything)
		f.publisher.AssertNotCalled(t, "PublishPaymentFailed", mock.Anything, mock.Anything)
	})

	t.Run("unknown gateway falls back to default", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		f.gw.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
			Return(gateway.PaymentResult{Success: true, TransactionID: "TXN_1"}, nil).Once()
		f.publisher.On("PublishPaymentSucceeded", mock.Anything, mock.Anything).Return(nil).Once()
		input := paymentInput("order-6", 10)
		input.Gateway = "stripe"

		// Act
		out, err := f.svc.ProcessPayment(ctx, input)
		f.drain(t)

		// Assert
		require.NoError(t, err)
		require.Equal(t, gateway.NameMock, out.Payment.Gateway)
	})

	t.Run("publish failure does not change outcome", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		f.gw.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
			Return(gateway.PaymentResult{Success: true, TransactionID: "TXN_2"}, nil).Once()
		f.publisher.On("PublishPaymentSucceeded", mock.Anything, mock.Anything).
			Return(errors.New("broker unavailable")).Once()

		// Act
		out, err := f.svc.ProcessPayment(ctx, paymentInput("order-7", 10))
		f.drain(t)

		// Assert
		require.NoError(t, err)
		require.Equal(t, repository.StatusSuccess, out.Payment.Status)
	})

	t.Run("store failure on create returns error, gateway not called", func(t *testing.T) {
		// Arrange
		gw := gatewaymocks.NewGateway(t)
		gw.On("Name").Return(gateway.NameMock)
		repo := repoMocks.NewPaymentRepository(t)
		repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("redis: connection refused")).Once()
		svc := service.NewPaymentService(repo, gateway.NewRegistry(gw), mocks.NewEventPublisher(t),
			metrics.New(prometheus.NewRegistry()), zap.NewNop(), service.Options{})

		// Act
		out, err := svc.ProcessPayment(ctx, paymentInput("order-8", 10))

		// Assert
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to create payment")
		require.Nil(t, out)
		gw.AssertNotCalled(t, "ProcessPayment", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPaymentService_HandleCallback(t *testing.T) {
	ctx := context.Background()

	// redirect создаёт платёж VNPay в статусе Processing
	redirect := func(t *testing.T, f *fixture, orderID string) repository.Payment {
		t.Helper()
		f.gw.On("ProcessPayment", mock.Anything, mock.MatchedBy(func(p repository.Payment) bool {
			return p.OrderID == orderID
		}), mock.Anything).Return(gateway.PaymentResult{Success: true, Pending: true, PaymentURL: "https://pay.example"}, nil).Once()
		input := paymentInput(orderID, 100000)
		input.Gateway = gateway.NameVNPay
		input.Method = repository.MethodVNPay
		out, err := f.svc.ProcessPayment(ctx, input)
		require.NoError(t, err)
		return out.Payment
	}
	fields := map[string]string{"vnp_TxnRef": "any"}

	t.Run("success callback completes payment, replay is a no-op", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameVNPay)
		p := redirect(t, f, "order-cb-1")
		amount := decimal.NewFromInt(100000)
		f.gw.On("VerifyCallback", mock.Anything, fields).Return(gateway.CallbackResult{
			Verified:      true,
			Success:       true,
			PaymentID:     p.PaymentID,
			TransactionID: "14000001",
			Amount:        &amount,
			ResultCode:    "00",
		}, nil).Twice()
		f.publisher.On("PublishPaymentSucceeded", mock.Anything, mock.MatchedBy(func(e service.PaymentSucceededEvent) bool {
			return e.PaymentID == p.PaymentID && e.TransactionID == "14000001"
		})).Return(nil).Once()

		// Act
		first, err := f.svc.HandleCallback(ctx, "vnpay", fields)
		require.NoError(t, err)
		second, errReplay := f.svc.HandleCallback(ctx, "VNPAY", fields)
		f.drain(t)

		// Assert
		require.False(t, first.Replayed)
		require.Equal(t, repository.StatusSuccess, first.Payment.Status)
		require.Equal(t, "14000001", first.Payment.TransactionID)
		require.NoError(t, errReplay)
		require.True(t, second.Replayed)
		require.Equal(t, service.MsgAlreadyProcessed, second.Message)
		require.Equal(t, repository.StatusSuccess, second.Payment.Status)
	})

	t.Run("failure callback marks payment Failed", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameVNPay)
		p := redirect(t, f, "order-cb-2")
		f.gw.On("VerifyCallback", mock.Anything, fields).Return(gateway.CallbackResult{
			Verified:     true,
			Success:      false,
			PaymentID:    p.PaymentID,
			ResultCode:   "24",
			ErrorMessage: "Customer cancelled the transaction",
		}, nil).Once()
		f.publisher.On("PublishPaymentFailed", mock.Anything, mock.MatchedBy(func(e service.PaymentFailedEvent) bool {
			return e.PaymentID == p.PaymentID && e.Reason == "Customer cancelled the transaction"
		})).Return(nil).Once()

		// Act
		out, err := f.svc.HandleCallback(ctx, gateway.NameVNPay, fields)
		f.drain(t)

		// Assert
		require.NoError(t, err)
		require.Equal(t, repository.StatusFailed, out.Payment.Status)
		require.Nil(t, out.Payment.CompletedAt)
	})

	t.Run("invalid signature leaves payment untouched", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameVNPay)
		p := redirect(t, f, "order-cb-3")
		f.gw.On("VerifyCallback", mock.Anything, fields).
			Return(gateway.CallbackResult{Verified: false, PaymentID: p.PaymentID, ErrorMessage: gateway.MsgInvalidSignature}, nil).Once()

		// Act
		out, err := f.svc.HandleCallback(ctx, gateway.NameVNPay, fields)
		f.drain(t)

		// Assert
		require.ErrorIs(t, err, service.ErrInvalidSignature)
		require.Nil(t, out)
		stored, err := f.repo.GetByID(ctx, p.PaymentID)
		require.NoError(t, err)
		require.Equal(t, repository.StatusProcessing, stored.Status)
	})

	t.Run("amount mismatch is rejected", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameVNPay)
		p := redirect(t, f, "order-cb-4")
		tampered := decimal.NewFromInt(1000)
		f.gw.On("VerifyCallback", mock.Anything, fields).
			Return(gateway.CallbackResult{Verified: true, Success: true, PaymentID: p.PaymentID, Amount: &tampered}, nil).Once()

		// Act
		_, err := f.svc.HandleCallback(ctx, gateway.NameVNPay, fields)

		// Assert
		require.ErrorIs(t, err, service.ErrCallbackAmountMismatch)
		stored, getErr := f.repo.GetByID(ctx, p.PaymentID)
		require.NoError(t, getErr)
		require.Equal(t, repository.StatusProcessing, stored.Status)
	})

	t.Run("unknown payment returns ErrPaymentNotFound", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameVNPay)
		f.gw.On("VerifyCallback", mock.Anything, fields).
			Return(gateway.CallbackResult{Verified: true, Success: true, PaymentID: "missing"}, nil).Once()

		// Act
		_, err := f.svc.HandleCallback(ctx, gateway.NameVNPay, fields)

		// Assert
		require.ErrorIs(t, err, service.ErrPaymentNotFound)
	})

	t.Run("unknown gateway returns ErrUnknownGateway", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameVNPay)

		// Act
		_, err := f.svc.HandleCallback(ctx, "paypal", fields)

		// Assert
		require.ErrorIs(t, err, service.ErrUnknownGateway)
	})
}

func TestPaymentService_RefundPayment(t *testing.T) {
	ctx := context.Background()
	amountPtr := func(v string) *decimal.Decimal {
		d := decimal.RequireFromString(v)
		return &d
	}

	t.Run("full refund by default", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		p := f.succeed(t, "order-r1", 100)
		f.gw.On("ProcessRefund", mock.Anything, mock.Anything, mock.MatchedBy(func(d decimal.Decimal) bool {
			return d.Equal(decimal.NewFromInt(100))
		}), "customer request").
			Return(gateway.RefundResult{Success: true, RefundID: "RFD_1"}, nil).Once()
		f.publisher.On("PublishPaymentRefunded", mock.Anything, mock.MatchedBy(func(e service.PaymentRefundedEvent) bool {
			return e.PaymentID == p.PaymentID && e.FullRefund && e.RefundAmount.Equal(decimal.NewFromInt(100))
		})).Return(nil).Once()

		// Act
		out, err := f.svc.RefundPayment(ctx, service.RefundInput{PaymentID: p.PaymentID, Reason: "customer request"})
		f.drain(t)

		// Assert
		require.NoError(t, err)
		require.Equal(t, repository.StatusRefunded, out.Payment.Status)
		require.True(t, out.Payment.TotalRefunded().Equal(decimal.NewFromInt(100)))
		require.Equal(t, "Refund of 100 USD processed successfully", out.Message)
	})

	t.Run("partial refunds accumulate up to the amount", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		p := f.succeed(t, "order-r2", 100)
		f.gw.On("ProcessRefund", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(gateway.RefundResult{Success: true}, nil).Twice()
		f.publisher.On("PublishPaymentRefunded", mock.Anything, mock.Anything).Return(nil).Twice()

		// Act
		first, err := f.svc.RefundPayment(ctx, service.RefundInput{PaymentID: p.PaymentID, Amount: amountPtr("30.50")})
		require.NoError(t, err)
		second, err := f.svc.RefundPayment(ctx, service.RefundInput{PaymentID: p.PaymentID, Amount: amountPtr("69.50")})
		f.drain(t)

		// Assert
		require.NoError(t, err)
		require.Equal(t, repository.StatusPartialRefund, first.Payment.Status)
		require.Equal(t, repository.StatusRefunded, second.Payment.Status)
		require.True(t, second.Payment.RemainingBalance().IsZero())
	})

	t.Run("refund above remaining balance is rejected", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		p := f.succeed(t, "order-r3", 100)

		// Act
		_, err := f.svc.RefundPayment(ctx, service.RefundInput{PaymentID: p.PaymentID, Amount: amountPtr("150")})

		// Assert
		require.ErrorIs(t, err, service.ErrRefundExceedsBalance)
		f.gw.AssertNotCalled(t, "ProcessRefund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		stored, getErr := f.repo.GetByID(ctx, p.PaymentID)
		require.NoError(t, getErr)
		require.Equal(t, repository.StatusSuccess, stored.Status)
	})

	t.Run("non-positive amount is rejected", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		p := f.succeed(t, "order-r4", 100)

		// Act
		_, err := f.svc.RefundPayment(ctx, service.RefundInput{PaymentID: p.PaymentID, Amount: amountPtr("0")})

		// Assert
		require.ErrorIs(t, err, service.ErrInvalidAmount)
	})

	t.Run("failed payment is not refundable", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		f.gw.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
			Return(gateway.PaymentResult{Success: false, ErrorMessage: "declined"}, nil).Once()
		f.publisher.On("PublishPaymentFailed", mock.Anything, mock.Anything).Return(nil).Once()
		out, err := f.svc.ProcessPayment(ctx, paymentInput("order-r5", 100))
		require.NoError(t, err)
		f.drain(t)

		// Act
		_, err = f.svc.RefundPayment(ctx, service.RefundInput{PaymentID: out.Payment.PaymentID})

		// Assert
		require.ErrorIs(t, err, service.ErrNotRefundable)
	})

	t.Run("unknown payment returns ErrPaymentNotFound", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)

		// Act
		_, err := f.svc.RefundPayment(ctx, service.RefundInput{PaymentID: "missing"})

		// Assert
		require.ErrorIs(t, err, service.ErrPaymentNotFound)
	})

	t.Run("unsupported gateway refund is recorded locally", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		p := f.succeed(t, "order-r6", 100)
		f.gw.On("ProcessRefund", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(gateway.RefundResult{Unsupported: true, ErrorMessage: "not implemented"}, nil).Once()
		f.publisher.On("PublishPaymentRefunded", mock.Anything, mock.Anything).Return(nil).Once()

		// Act
		out, err := f.svc.RefundPayment(ctx, service.RefundInput{PaymentID: p.PaymentID, Amount: amountPtr("40")})
		f.drain(t)

		// Assert
		require.NoError(t, err)
		require.Equal(t, repository.StatusPartialRefund, out.Payment.Status)
		require.Contains(t, out.Message, "recorded locally")
	})

	t.Run("declined refund leaves payment untouched", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		p := f.succeed(t, "order-r7", 100)
		f.gw.On("ProcessRefund", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(gateway.RefundResult{Success: false, ErrorMessage: "refund window closed"}, nil).Once()

		// Act
		_, err := f.svc.RefundPayment(ctx, service.RefundInput{PaymentID: p.PaymentID})

		// Assert
		require.ErrorIs(t, err, service.ErrRefundRejected)
		require.Contains(t, err.Error(), "refund window closed")
		stored, getErr := f.repo.GetByID(ctx, p.PaymentID)
		require.NoError(t, getErr)
		require.Equal(t, repository.StatusSuccess, stored.Status)
		require.Nil(t, stored.RefundedAmount)
	})

	t.Run("gateway no longer registered rejects without falling back", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		p := repository.Payment{
			PaymentID:     "pay-orphan",
			OrderID:       "order-r8",
			Username:      "alice",
			Amount:        decimal.NewFromInt(50000),
			Currency:      "VND",
			Method:        repository.MethodMoMo,
			Gateway:       gateway.NameMoMo,
			Status:        repository.StatusSuccess,
			TransactionID: "4088878653",
			CreatedAt:     fixedNow,
		}
		require.NoError(t, f.repo.Create(ctx, p))

		// Act
		_, err := f.svc.RefundPayment(ctx, service.RefundInput{PaymentID: p.PaymentID, Reason: "customer request"})
		f.drain(t)

		// Assert
		require.ErrorIs(t, err, service.ErrRefundRejected)
		require.ErrorIs(t, err, service.ErrUnknownGateway)
		f.gw.AssertNotCalled(t, "ProcessRefund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.publisher.AssertNotCalled(t, "PublishPaymentRefunded", mock.Anything, mock.Anything)
		stored, getErr := f.repo.GetByID(ctx, p.PaymentID)
		require.NoError(t, getErr)
		require.Equal(t, repository.StatusSuccess, stored.Status)
		require.Nil(t, stored.RefundedAmount)
	})
}

func TestPaymentService_RedirectWithoutVNDCurrency(t *testing.T) {
	ctx := context.Background()

	vnpayGw, err := vnpay.New(vnpay.Config{
		TmnCode:     "TMN01",
		HashSecret:  "SECRET",
		PaymentURL:  "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:   "http://localhost:8080/payments/return/vnpay",
		Version:     "2.1.0",
		ExpireAfter: 15 * time.Minute,
	})
	require.NoError(t, err)

	tests := []struct {
		name         string
		currency     string
		wantCurrency string
	}{
		{name: "omitted currency defaults to USD", currency: "", wantCurrency: "USD"},
		{name: "explicit USD", currency: "USD", wantCurrency: "USD"},
		{name: "VND", currency: "vnd", wantCurrency: "VND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			fallback := gatewaymocks.NewGateway(t)
			fallback.On("Name").Return(gateway.NameMock)
			publisher := mocks.NewEventPublisher(t)
			svc := service.NewPaymentService(
				memory.NewMemoryRepository(repository.DefaultTTL),
				gateway.NewRegistry(fallback, vnpayGw),
				publisher,
				metrics.New(prometheus.NewRegistry()),
				zap.NewNop(),
				service.Options{Now: func() time.Time { return fixedNow }},
			)
			input := paymentInput("order-redirect", 0)
			input.Amount = decimal.RequireFromString("100.00")
			input.Currency = tt.currency
			input.Method = repository.MethodVNPay
			input.Gateway = gateway.NameVNPay

			// Act
			out, err := svc.ProcessPayment(ctx, input)

			// Assert
			require.NoError(t, err)
			require.Equal(t, repository.StatusProcessing, out.Payment.Status)
			require.Equal(t, tt.wantCurrency, out.Payment.Currency)
			require.Equal(t, service.MsgPaymentRedirect, out.Message)
			require.Contains(t, out.Payment.PaymentURL, "vnp_CurrCode=VND")
			require.Contains(t, out.Payment.PaymentURL, "vnp_Amount=10000&")
			publisher.AssertNotCalled(t, "PublishPaymentFailed", mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentService_Queries(t *testing.T) {
	ctx := context.Background()

	t.Run("get by id and order id", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)
		p := f.succeed(t, "order-q1", 25)

		// Act
		byID, errID := f.svc.GetPayment(ctx, p.PaymentID)
		byOrder, errOrder := f.svc.GetPaymentByOrderID(ctx, "order-q1")
		_, errMissing := f.svc.GetPayment(ctx, "missing")

		// Assert
		require.NoError(t, errID)
		require.NoError(t, errOrder)
		require.Equal(t, p.PaymentID, byID.PaymentID)
		require.Equal(t, p.PaymentID, byOrder.PaymentID)
		require.ErrorIs(t, errMissing, service.ErrPaymentNotFound)
	})

	t.Run("history for unknown user is empty, not nil", func(t *testing.T) {
		// Arrange
		f := newFixture(t, gateway.NameMock)

		// Act
		history, err := f.svc.GetPaymentHistory(ctx, "nobody", 0)

		// Assert
		require.NoError(t, err)
		require.NotNil(t, history)
		require.Empty(t, history)
	})

	t.Run("history limit is clamped", func(t *testing.T) {
		// Arrange
		gw := gatewaymocks.NewGateway(t)
		gw.On("Name").Return(gateway.NameMock)
		repo := repoMocks.NewPaymentRepository(t)
		repo.On("ListByUsername", mock.Anything, "alice", 100).Return([]repository.Payment{}, nil).Once()
		repo.On("ListByUsername", mock.Anything, "alice", 50).Return([]repository.Payment{}, nil).Once()
		svc := service.NewPaymentService(repo, gateway.NewRegistry(gw), mocks.NewEventPublisher(t),
			metrics.New(prometheus.NewRegistry()), zap.NewNop(), service.Options{})

		// Act
		_, errMax := svc.GetPaymentHistory(ctx, "alice", 1000)
		_, errDefault := svc.GetPaymentHistory(ctx, "alice", -1)

		// Assert
		require.NoError(t, errMax)
		require.NoError(t, errDefault)
	})
}
