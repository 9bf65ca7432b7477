package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status статус платежа
type Status string

const (
	StatusPending       Status = "Pending" // не используется ядром, оставлен для совместимости формата
	StatusProcessing    Status = "Processing"
	StatusSuccess       Status = "Success"
	StatusFailed        Status = "Failed"
	StatusCancelled     Status = "Cancelled" // не используется ядром, оставлен для совместимости формата
	StatusRefunded      Status = "Refunded"
	StatusPartialRefund Status = "PartialRefund"
)

// transitions граф переходов; статусы, которых нет в ключах, терминальные
var transitions = map[Status][]Status{
	StatusProcessing:    {StatusSuccess, StatusFailed},
	StatusSuccess:       {StatusRefunded, StatusPartialRefund},
	StatusPartialRefund: {StatusRefunded, StatusPartialRefund},
}

// CanTransitionTo сообщает, разрешён ли переход из s в target
func (s Status) CanTransitionTo(target Status) bool {
	return slices.Contains(transitions[s], target)
}

// Refundable сообщает, можно ли вернуть деньги по платежу в этом статусе
func (s Status) Refundable() bool {
	return s == StatusSuccess || s == StatusPartialRefund
}

// Method способ оплаты
type Method string

const (
	MethodCreditCard     Method = "credit_card"
	MethodDebitCard      Method = "debit_card"
	MethodPayPal         Method = "paypal"
	MethodBankTransfer   Method = "bank_transfer"
	MethodCashOnDelivery Method = "cash_on_delivery"
	MethodMoMo           Method = "momo"
	MethodVNPay          Method = "vnpay"
	MethodStripe         Method = "stripe"
)

// Methods все известные способы оплаты
var Methods = []Method{
	MethodCreditCard,
	MethodDebitCard,
	MethodPayPal,
	MethodBankTransfer,
	MethodCashOnDelivery,
	MethodMoMo,
	MethodVNPay,
	MethodStripe,
}

// ParseMethod разбирает способ оплаты без учёта регистра
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Methods, m) {
		return "", fmt.Errorf("unknown payment method: %q", s)
	}
	return m, nil
}

// IsRedirect сообщает, что результат оплаты приходит асинхронно через провайдера
func (m Method) IsRedirect() bool {
	return m == MethodMoMo || m == MethodVNPay
}

var (
	// ErrInvalidTransition возвращается при попытке перехода, которого нет в графе
	ErrInvalidTransition = errors.New("invalid payment status transition")
	// ErrRefundExceedsBalance возвращается, если сумма возврата больше остатка
	ErrRefundExceedsBalance = errors.New("refund amount exceeds remaining balance")
)

// Payment доменная модель платежа.
// Меняется только PaymentService; адаптеры шлюзов и хранилище её не мутируют.
type Payment struct {
	PaymentID      string            `json:"paymentId"`
	OrderID        string            `json:"orderId"`
	Username       string            `json:"username"`
	EmailAddress   string            `json:"emailAddress"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	Method         Method            `json:"paymentMethod"`
	Gateway        string            `json:"paymentGateway"`
	Status         Status            `json:"status"`
	TransactionID  string            `json:"transactionId,omitempty"`
	PaymentURL     string            `json:"paymentUrl,omitempty"`
	FailureReason  string            `json:"failureReason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
	UpdatedAt      *time.Time        `json:"updatedAt,omitempty"`
	RefundedAmount *decimal.Decimal  `json:"refundedAmount,omitempty"`
	RefundReason   string            `json:"refundReason,omitempty"`
	RefundedAt     *time.Time        `json:"refundedAt,omitempty"`
}

// MarshalJSON записывает суммы строками с исходным масштабом ("100.50", а не "100.5"),
// чтобы запись из хранилища читалась обратно без изменений
func (p Payment) MarshalJSON() ([]byte, error) {
	type plain Payment
	out := struct {
		plain
		Amount         string  `json:"amount"`
		RefundedAmount *string `json:"refundedAmount,omitempty"`
	}{
		plain:  plain(p),
		Amount: AmountString(p.Amount),
	}
	if p.RefundedAmount != nil {
		refunded := AmountString(*p.RefundedAmount)
		out.RefundedAmount = &refunded
	}
	return json.Marshal(out)
}

// AmountString форматирует сумму, сохраняя количество знаков после запятой
func AmountString(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// TotalRefunded возвращает накопленную сумму возвратов (0, если возвратов не было)
func (p Payment) TotalRefunded() decimal.Decimal {
	if p.RefundedAmount == nil {
		return decimal.Zero
	}
	return *p.RefundedAmount
}

// RemainingBalance сумма, которую ещё можно вернуть
func (p Payment) RemainingBalance() decimal.Decimal {
	return p.Amount.Sub(p.TotalRefunded())
}

func (p *Payment) transition(to Status, at time.Time) error {
	if !p.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}
	p.Status = to
	p.UpdatedAt = &at
	return nil
}

// MarkSucceeded переводит платёж в Success
func (p *Payment) MarkSucceeded(transactionID string, at time.Time) error {
	if err := p.transition(StatusSuccess, at); err != nil {
		return err
	}
	if transactionID != "" {
		p.TransactionID = transactionID
	}
	p.CompletedAt = &at
	return nil
}

// MarkFailed переводит платёж в Failed и запоминает причину
func (p *Payment) MarkFailed(reason string, at time.Time) error {
	if err := p.transition(StatusFailed, at); err != nil {
		return err
	}
	p.FailureReason = reason
	return nil
}

// ApplyRefund увеличивает сумму возвратов на amount и выставляет
// Refunded при полном возврате или PartialRefund иначе
func (p *Payment) ApplyRefund(amount decimal.Decimal, reason string, at time.Time) error {
	if amount.GreaterThan(p.RemainingBalance()) {
		return fmt.Errorf("%w: requested %s, remaining %s", ErrRefundExceedsBalance, amount, p.RemainingBalance())
	}

	total := p.TotalRefunded().Add(amount)
	next := StatusPartialRefund
	if total.GreaterThanOrEqual(p.Amount) {
		next = StatusRefunded
	}
	if err := p.transition(next, at); err != nil {
		return err
	}

	p.RefundedAmount = &total
	p.RefundReason = reason
	p.RefundedAt = &at
	return nil
}
