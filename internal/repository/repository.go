package repository

import (
	"context"
	"errors"
	"time"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=PaymentRepository --dir=. --output=./mocks --outpkg=mocks

// PaymentRepository определяет интерфейс хранилища платежей.
// Платёж доступен по трём независимым ключам: id, orderId и username.
// Записи в разные ключи не атомарны: при сбое посередине индексы могут разойтись.
type PaymentRepository interface {
	// Create сохраняет новый платёж и регистрирует его в индексах order и user
	Create(ctx context.Context, payment Payment) error

	// Update перезаписывает платёж и продлевает срок хранения всех его ключей
	Update(ctx context.Context, payment Payment) error

	// GetByID возвращает платёж или ErrNotFound
	GetByID(ctx context.Context, paymentID string) (Payment, error)

	// GetByOrderID возвращает последний платёж заказа или ErrNotFound
	GetByOrderID(ctx context.Context, orderID string) (Payment, error)

	// ListByUsername возвращает до limit платежей пользователя, новые первыми
	ListByUsername(ctx context.Context, username string, limit int) ([]Payment, error)
}

// ErrNotFound возвращается, когда платёж не найден в хранилище
var ErrNotFound = errors.New("payment not found")

// DefaultTTL срок хранения платежа и его индексов
const DefaultTTL = 90 * 24 * time.Hour

// PaymentKey ключ полной записи платежа
func PaymentKey(paymentID string) string {
	return "payment:" + paymentID
}

// OrderKey ключ индекса orderId -> paymentId
func OrderKey(orderID string) string {
	return "payment:order:" + orderID
}

// UserKey ключ индекса username -> JSON массив paymentId
func UserKey(username string) string {
	return "payment:user:" + username
}
