package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
)

// Типы событий; совпадают с названиями топиков по умолчанию
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
)

// PaymentSucceededEvent платёж подтверждён
type PaymentSucceededEvent struct {
	PaymentID     string
	OrderID       string
	Username      string
	EmailAddress  string
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
	Gateway       string
	TransactionID string
	CompletedAt   time.Time
}

// PaymentFailedEvent платёж отклонён или шлюз недоступен
type PaymentFailedEvent struct {
	PaymentID     string
	OrderID       string
	Username      string
	EmailAddress  string
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
	Gateway       string
	Reason        string
	FailedAt      time.Time
}

// PaymentRefundedEvent проведён полный или частичный возврат
type PaymentRefundedEvent struct {
	PaymentID     string
	OrderID       string
	Username      string
	EmailAddress  string
	RefundAmount  decimal.Decimal
	TotalRefunded decimal.Decimal
	Currency      string
	Reason        string
	FullRefund    bool
	RefundedAt    time.Time
}

func newSucceededEvent(p repository.Payment) PaymentSucceededEvent {
	e := PaymentSucceededEvent{
		PaymentID:     p.PaymentID,
		OrderID:       p.OrderID,
		Username:      p.Username,
		EmailAddress:  p.EmailAddress,
		Amount:        p.Amount,
		Currency:      p.Currency,
		PaymentMethod: string(p.Method),
		Gateway:       p.Gateway,
		TransactionID: p.TransactionID,
	}
	if p.CompletedAt != nil {
		e.CompletedAt = *p.CompletedAt
	}
	return e
}

func newFailedEvent(p repository.Payment) PaymentFailedEvent {
	e := PaymentFailedEvent{
		PaymentID:     p.PaymentID,
		OrderID:       p.OrderID,
		Username:      p.Username,
		EmailAddress:  p.EmailAddress,
		Amount:        p.Amount,
		Currency:      p.Currency,
		PaymentMethod: string(p.Method),
		Gateway:       p.Gateway,
		Reason:        p.FailureReason,
	}
	if p.UpdatedAt != nil {
		e.FailedAt = *p.UpdatedAt
	}
	return e
}

func newRefundedEvent(p repository.Payment, amount decimal.Decimal) PaymentRefundedEvent {
	e := PaymentRefundedEvent{
		PaymentID:     p.PaymentID,
		OrderID:       p.OrderID,
		Username:      p.Username,
		EmailAddress:  p.EmailAddress,
		RefundAmount:  amount,
		TotalRefunded: p.TotalRefunded(),
		Currency:      p.Currency,
		Reason:        p.RefundReason,
		FullRefund:    p.Status == repository.StatusRefunded,
	}
	if p.RefundedAt != nil {
		e.RefundedAt = *p.RefundedAt
	}
	return e
}
