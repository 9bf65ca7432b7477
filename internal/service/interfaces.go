package service

import "context"

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=EventPublisher --dir=. --output=./mocks --outpkg=mocks

// EventPublisher определяет интерфейс для публикации событий платежей.
// Вызывается асинхронно: ошибка логируется и не влияет на сохранённый статус.
type EventPublisher interface {
	// PublishPaymentSucceeded публикует событие успешной оплаты
	PublishPaymentSucceeded(ctx context.Context, event PaymentSucceededEvent) error

	// PublishPaymentFailed публикует событие неуспешной оплаты
	PublishPaymentFailed(ctx context.Context, event PaymentFailedEvent) error

	// PublishPaymentRefunded публикует событие возврата
	PublishPaymentRefunded(ctx context.Context, event PaymentRefundedEvent) error
}
