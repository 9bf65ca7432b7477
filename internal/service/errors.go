package service

import (
	"errors"

	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
)

var (
	// ErrInvalidInput обязательное поле запроса не заполнено
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidAmount сумма платежа или возврата не положительна
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")
	// ErrPaymentNotFound платёж не найден
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrNotRefundable платёж не в статусе, допускающем возврат
	ErrNotRefundable = errors.New("payment is not refundable")
	// ErrRefundExceedsBalance сумма возврата больше остатка
	ErrRefundExceedsBalance = repository.ErrRefundExceedsBalance
	// ErrRefundRejected провайдер отклонил возврат или не ответил
	ErrRefundRejected = errors.New("refund rejected by gateway")
	// ErrUnknownGateway callback пришёл для незарегистрированного шлюза
	ErrUnknownGateway = errors.New("unknown gateway")
	// ErrInvalidSignature подпись callback не совпала
	ErrInvalidSignature = errors.New("invalid callback signature")
	// ErrCallbackAmountMismatch сумма в callback не совпадает с суммой платежа
	ErrCallbackAmountMismatch = errors.New("callback amount does not match payment")
)
