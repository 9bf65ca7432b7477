package httpapi

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
	"github.com/shestoi/GoBigTech/payment-core/internal/service"
)

// ProcessPaymentRequest тело POST /payments/process
type ProcessPaymentRequest struct {
	OrderID       string            `json:"orderId" validate:"required,max=128"`
	Username      string            `json:"username" validate:"required,max=128"`
	EmailAddress  string            `json:"emailAddress" validate:"required,email"`
	Amount        decimal.Decimal   `json:"amount" validate:"gt=0"`
	Currency      string            `json:"currency" validate:"omitempty,len=3,alpha"`
	PaymentMethod string            `json:"paymentMethod" validate:"required"`
	Gateway       string            `json:"gateway" validate:"omitempty,max=32"`
	AuxiliaryData map[string]string `json:"auxiliaryData" validate:"omitempty,max=32,dive,keys,max=64,endkeys,max=512"`
}

// RefundRequest тело POST /payments/{paymentId}/refund; amount не указан = полный возврат
type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason" validate:"required,max=500"`
}

// PaymentResponse ответ на создание платежа, возврат и callback
type PaymentResponse struct {
	PaymentID     string     `json:"paymentId"`
	OrderID       string     `json:"orderId"`
	Status        string     `json:"status"`
	Message       string     `json:"message"`
	Amount        Money      `json:"amount"`
	Currency      string     `json:"currency"`
	CreatedAt     time.Time  `json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	PaymentURL    string     `json:"paymentUrl,omitempty"`
	TransactionID string     `json:"transactionId,omitempty"`
}

// PaymentStatusResponse состояние платежа для GET-запросов
type PaymentStatusResponse struct {
	PaymentID      string     `json:"paymentId"`
	OrderID        string     `json:"orderId"`
	Username       string     `json:"username"`
	Status         string     `json:"status"`
	Amount         Money      `json:"amount"`
	Currency       string     `json:"currency"`
	PaymentMethod  string     `json:"paymentMethod"`
	Gateway        string     `json:"gateway"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	TransactionID  string     `json:"transactionId,omitempty"`
	PaymentURL     string     `json:"paymentUrl,omitempty"`
	FailureReason  string     `json:"failureReason,omitempty"`
	RefundedAmount *Money     `json:"refundedAmount,omitempty"`
	RefundedAt     *time.Time `json:"refundedAt,omitempty"`
}

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toPaymentResponse(out *service.PaymentOutput) PaymentResponse {
	p := out.Payment
	return PaymentResponse{
		PaymentID:     p.PaymentID,
		OrderID:       p.OrderID,
		Status:        string(p.Status),
		Message:       out.Message,
		Amount:        Money{p.Amount},
		Currency:      p.Currency,
		CreatedAt:     p.CreatedAt,
		CompletedAt:   p.CompletedAt,
		PaymentURL:    p.PaymentURL,
		TransactionID: p.TransactionID,
	}
}

func toStatusResponse(p repository.Payment) PaymentStatusResponse {
	return PaymentStatusResponse{
		PaymentID:      p.PaymentID,
		OrderID:        p.OrderID,
		Username:       p.Username,
		Status:         string(p.Status),
		Amount:         Money{p.Amount},
		Currency:       p.Currency,
		PaymentMethod:  string(p.Method),
		Gateway:        p.Gateway,
		CreatedAt:      p.CreatedAt,
		CompletedAt:    p.CompletedAt,
		TransactionID:  p.TransactionID,
		PaymentURL:     p.PaymentURL,
		FailureReason:  p.FailureReason,
		RefundedAmount: newMoney(p.RefundedAmount),
		RefundedAt:     p.RefundedAt,
	}
}

// Money сумма в ответе: строка с тем же числом знаков после запятой, с которым сумма пришла
type Money struct {
	decimal.Decimal
}

// MarshalJSON см. repository.AmountString
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(repository.AmountString(m.Decimal))
}

func newMoney(d *decimal.Decimal) *Money {
	if d == nil {
		return nil
	}
	return &Money{*d}
}

// newValidator создаёт validator, который сравнивает decimal.Decimal как число
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}
