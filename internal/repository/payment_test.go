package repository

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newSucceededPayment(t *testing.T, amount string) Payment {
	t.Helper()
	p := Payment{
		PaymentID: "pay-1",
		OrderID:   "order-1",
		Amount:    decimal.RequireFromString(amount),
		Currency:  "USD",
		Status:    StatusProcessing,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, p.MarkSucceeded("TXN_1", p.CreatedAt.Add(time.Second)))
	return p
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusProcessing, StatusSuccess, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusRefunded, false},
		{StatusSuccess, StatusPartialRefund, true},
		{StatusSuccess, StatusRefunded, true},
		{StatusSuccess, StatusFailed, false},
		{StatusSuccess, StatusProcessing, false},
		{StatusPartialRefund, StatusRefunded, true},
		{StatusPartialRefund, StatusSuccess, false},
		{StatusFailed, StatusSuccess, false},
		{StatusRefunded, StatusPartialRefund, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			require.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPayment_MarkSucceeded(t *testing.T) {
	p := newSucceededPayment(t, "100.00")

	require.Equal(t, StatusSuccess, p.Status)
	require.Equal(t, "TXN_1", p.TransactionID)
	require.NotNil(t, p.CompletedAt)
	require.False(t, p.CompletedAt.Before(p.CreatedAt))

	// повторное подтверждение запрещено
	err := p.MarkSucceeded("TXN_2", time.Now())
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, "TXN_1", p.TransactionID)
}

func TestPayment_MarkFailed(t *testing.T) {
	p := Payment{Status: StatusProcessing}
	require.NoError(t, p.MarkFailed("declined", time.Now()))
	require.Equal(t, StatusFailed, p.Status)
	require.Equal(t, "declined", p.FailureReason)
	require.Nil(t, p.CompletedAt)

	require.ErrorIs(t, p.MarkFailed("again", time.Now()), ErrInvalidTransition)
	require.Equal(t, "declined", p.FailureReason)
}

func TestPayment_ApplyRefund(t *testing.T) {
	t.Run("partial then full", func(t *testing.T) {
		p := newSucceededPayment(t, "100.00")

		require.NoError(t, p.ApplyRefund(decimal.RequireFromString("40.00"), "damaged", time.Now()))
		require.Equal(t, StatusPartialRefund, p.Status)
		require.True(t, p.TotalRefunded().Equal(decimal.RequireFromString("40")))
		require.True(t, p.RemainingBalance().Equal(decimal.RequireFromString("60")))

		require.NoError(t, p.ApplyRefund(decimal.RequireFromString("60.00"), "rest", time.Now()))
		require.Equal(t, StatusRefunded, p.Status)
		require.True(t, p.TotalRefunded().Equal(p.Amount))
		require.Equal(t, "rest", p.RefundReason)
		require.NotNil(t, p.RefundedAt)
	})

	t.Run("exact amount refunds fully", func(t *testing.T) {
		p := newSucceededPayment(t, "19.99")
		require.NoError(t, p.ApplyRefund(decimal.RequireFromString("19.99"), "", time.Now()))
		require.Equal(t, StatusRefunded, p.Status)
	})

	t.Run("exceeding remaining balance rejected", func(t *testing.T) {
		p := newSucceededPayment(t, "100.00")
		require.NoError(t, p.ApplyRefund(decimal.RequireFromString("70"), "", time.Now()))

		err := p.ApplyRefund(decimal.RequireFromString("30.01"), "", time.Now())
		require.ErrorIs(t, err, ErrRefundExceedsBalance)
		require.Equal(t, StatusPartialRefund, p.Status)
		require.True(t, p.TotalRefunded().Equal(decimal.RequireFromString("70")))
	})

	t.Run("refund after full refund rejected", func(t *testing.T) {
		p := newSucceededPayment(t, "10")
		require.NoError(t, p.ApplyRefund(decimal.RequireFromString("10"), "", time.Now()))

		err := p.ApplyRefund(decimal.Zero, "", time.Now())
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("failed payment not refundable", func(t *testing.T) {
		p := Payment{Amount: decimal.NewFromInt(10), Status: StatusFailed}
		err := p.ApplyRefund(decimal.NewFromInt(1), "", time.Now())
		require.ErrorIs(t, err, ErrInvalidTransition)
		require.Nil(t, p.RefundedAmount)
	})
}

func TestPayment_JSONRoundTrip(t *testing.T) {
	p := newSucceededPayment(t, "100.50")
	p.Username = "alice"
	p.EmailAddress = "alice@example.com"
	p.Method = MethodCreditCard
	p.Gateway = "mock"
	p.Metadata = map[string]string{"ipAddress": "10.0.0.1"}
	require.NoError(t, p.ApplyRefund(decimal.RequireFromString("0.50"), "fee", p.CompletedAt.Add(time.Minute)))

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	require.Contains(t, string(raw), `"amount":"100.50"`)
	require.Contains(t, string(raw), `"refundedAmount":"0.50"`)

	var got Payment
	require.NoError(t, json.Unmarshal(raw, &got))

	require.Equal(t, p, got)
	require.Equal(t, "100.50", AmountString(got.Amount))
}

func TestAmountString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "100.50", want: "100.50"},
		{in: "100.5", want: "100.5"},
		{in: "150000", want: "150000"},
		{in: "0.10", want: "0.10"},
		{in: "-3.000", want: "-3.000"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, AmountString(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" VNPay ")
	require.NoError(t, err)
	require.Equal(t, MethodVNPay, m)
	require.True(t, m.IsRedirect())
	require.False(t, MethodCreditCard.IsRedirect())

	_, err = ParseMethod("cheque")
	require.Error(t, err)
}

func TestKeys(t *testing.T) {
	require.Equal(t, "payment:p-1", PaymentKey("p-1"))
	require.Equal(t, "payment:order:o-1", OrderKey("o-1"))
	require.Equal(t, "payment:user:bob", UserKey("bob"))
	require.Equal(t, 90*24*time.Hour, DefaultTTL)
}
