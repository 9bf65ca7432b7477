package gateway

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
)

// Имена адаптеров в реестре
const (
	NameMock  = "mock"
	NameMoMo  = "momo"
	NameVNPay = "vnpay"
)

// MsgInvalidSignature сообщение при несовпадении подписи callback
const MsgInvalidSignature = "Invalid signature"

// ErrCallbackNotSupported возвращается адаптерами, к которым провайдер не шлёт callback
var ErrCallbackNotSupported = errors.New("gateway does not support callbacks")

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=Gateway --dir=. --output=./mocks --outpkg=mocks

// Gateway набор возможностей платёжного провайдера.
// Адаптер не меняет платёж: он только сообщает результат, а статус выставляет PaymentService.
// Ошибка означает сбой вызова (сеть, таймаут, конфигурация); отказ провайдера
// передаётся через Success=false и ErrorMessage.
type Gateway interface {
	// Name ключ адаптера в реестре
	Name() string

	// ProcessPayment проводит прямой платёж или создаёт redirect на страницу провайдера
	ProcessPayment(ctx context.Context, payment repository.Payment, data map[string]string) (PaymentResult, error)

	// CreatePaymentURL строит ссылку на оплату; прямые адаптеры возвращают пустую строку
	CreatePaymentURL(ctx context.Context, payment repository.Payment, data map[string]string) (string, error)

	// VerifyCallback проверяет подпись уведомления провайдера и разбирает результат
	VerifyCallback(ctx context.Context, fields map[string]string) (CallbackResult, error)

	// ProcessRefund возвращает amount по уже успешному платежу
	ProcessRefund(ctx context.Context, payment repository.Payment, amount decimal.Decimal, reason string) (RefundResult, error)
}

// PaymentResult результат ProcessPayment
type PaymentResult struct {
	Success bool
	// Pending выставляется redirect-адаптерами: Success значит "ссылка создана",
	// окончательный результат придёт в callback
	Pending       bool
	TransactionID string
	PaymentURL    string
	ErrorMessage  string
}

// CallbackResult результат VerifyCallback
type CallbackResult struct {
	// Verified подпись совпала; при false остальным полям доверять нельзя
	Verified bool
	// Success провайдер подтвердил списание
	Success       bool
	PaymentID     string
	TransactionID string
	// Amount сумма из уведомления, nil если провайдер её не прислал
	Amount       *decimal.Decimal
	ResultCode   string
	ErrorMessage string
}

// RefundResult результат ProcessRefund
type RefundResult struct {
	Success bool
	// Unsupported адаптер не умеет возвраты; локальный учёт возврата при этом допустим
	Unsupported  bool
	RefundID     string
	ErrorMessage string
}

// Registry статическое отображение имени в адаптер
type Registry struct {
	gateways map[string]Gateway
	fallback Gateway
}

// NewRegistry создаёт реестр; fallback используется для пустого или неизвестного имени
func NewRegistry(fallback Gateway, others ...Gateway) *Registry {
	r := &Registry{
		gateways: make(map[string]Gateway, len(others)+1),
		fallback: fallback,
	}
	r.gateways[normalize(fallback.Name())] = fallback
	for _, g := range others {
		r.gateways[normalize(g.Name())] = g
	}
	return r
}

// Resolve возвращает адаптер по имени без учёта регистра.
// Второе значение false означает, что был выбран fallback.
func (r *Registry) Resolve(name string) (Gateway, bool) {
	if g, ok := r.gateways[normalize(name)]; ok {
		return g, true
	}
	return r.fallback, false
}

// Lookup ищет адаптер строго по имени, без fallback
func (r *Registry) Lookup(name string) (Gateway, bool) {
	g, ok := r.gateways[normalize(name)]
	return g, ok
}

// Names возвращает имена зарегистрированных адаптеров
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for n := range r.gateways {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
