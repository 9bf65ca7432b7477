package vnpay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shestoi/GoBigTech/payment-core/internal/gateway"
	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
	"github.com/shestoi/GoBigTech/payment-core/internal/signature"
)

const (
	fieldSecureHash     = "vnp_SecureHash"
	fieldSecureHashType = "vnp_SecureHashType"

	dateLayout = "20060102150405"

	codeSuccess = "00"

	// RefundNotImplemented сообщение ProcessRefund
	RefundNotImplemented = "VNPay refund not implemented"
)

// ErrUnsupportedPayment сумму платежа нельзя выразить в сотых долях
var ErrUnsupportedPayment = errors.New("payment not supported by vnpay")

// vietnamZone время VNPay всегда в GMT+7
var vietnamZone = time.FixedZone("ICT", 7*60*60)

// responseMessages расшифровка частых кодов vnp_ResponseCode
var responseMessages = map[string]string{
	"07": "Transaction suspected of fraud",
	"09": "Card not registered for internet banking",
	"10": "Card authentication failed too many times",
	"11": "Payment timed out",
	"12": "Card is locked",
	"24": "Customer cancelled the transaction",
	"51": "Insufficient balance",
	"65": "Daily transaction limit exceeded",
	"75": "Bank is under maintenance",
	"99": "Unknown error",
}

// Config настройки VNPay
type Config struct {
	TmnCode     string        `env:"VNPAY_TMN_CODE"`
	HashSecret  string        `env:"VNPAY_HASH_SECRET"`
	PaymentURL  string        `env:"VNPAY_PAYMENT_URL" envDefault:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	ReturnURL   string        `env:"VNPAY_RETURN_URL" envDefault:"http://localhost:8080/payments/return/vnpay"`
	Version     string        `env:"VNPAY_VERSION" envDefault:"2.1.0"`
	ExpireAfter time.Duration `env:"VNPAY_EXPIRE_AFTER" envDefault:"15m"`
}

// Gateway redirect-адаптер VNPay: подписывает параметры HMAC-SHA512
// и отдаёт ссылку на платёжную страницу, результат приходит в IPN.
type Gateway struct {
	cfg   Config
	codec *signature.Codec
	now   func() time.Time
}

// Option настраивает Gateway
type Option func(*Gateway)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// New создаёт адаптер VNPay
func New(cfg Config, opts ...Option) (*Gateway, error) {
	codec, err := signature.New(signature.SHA512, cfg.HashSecret)
	if err != nil {
		return nil, err
	}
	g := &Gateway{
		cfg:   cfg,
		codec: codec,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Name имя адаптера
func (g *Gateway) Name() string {
	return gateway.NameVNPay
}

// ProcessPayment создаёт ссылку на оплату; Success означает только "ссылка создана"
func (g *Gateway) ProcessPayment(ctx context.Context, payment repository.Payment, data map[string]string) (gateway.PaymentResult, error) {
	paymentURL, err := g.CreatePaymentURL(ctx, payment, data)
	if err != nil {
		if errors.Is(err, ErrUnsupportedPayment) {
			return gateway.PaymentResult{Success: false, ErrorMessage: err.Error()}, nil
		}
		return gateway.PaymentResult{}, err
	}
	return gateway.PaymentResult{
		Success:    true,
		Pending:    true,
		PaymentURL: paymentURL,
	}, nil
}

// CreatePaymentURL собирает vnp_* параметры, сортирует их и добавляет vnp_SecureHash
func (g *Gateway) CreatePaymentURL(ctx context.Context, payment repository.Payment, data map[string]string) (string, error) {
	params, err := g.buildParams(payment, data)
	if err != nil {
		return "", err
	}

	query := signature.Canonical(params, mapKeys(params), signature.SkipEmpty(), signature.WithEscape(url.QueryEscape))
	secureHash := g.codec.Sign(query)

	return g.cfg.PaymentURL + "?" + query + "&" + fieldSecureHash + "=" + secureHash, nil
}

func (g *Gateway) buildParams(payment repository.Payment, data map[string]string) (map[string]string, error) {
	// vnp_CurrCode всегда VND, код валюты платежа не проверяется.
	// VNPay принимает сумму в сотых долях донга целым числом
	minor := payment.Amount.Shift(2)
	if !minor.IsInteger() || !minor.IsPositive() {
		return nil, fmt.Errorf("%w: amount %s cannot be expressed in minor units", ErrUnsupportedPayment, payment.Amount)
	}

	now := g.now().In(vietnamZone)
	params := map[string]string{
		"vnp_Version":    g.cfg.Version,
		"vnp_Command":    "pay",
		"vnp_TmnCode":    g.cfg.TmnCode,
		"vnp_Amount":     minor.String(),
		"vnp_CreateDate": now.Format(dateLayout),
		"vnp_CurrCode":   "VND",
		"vnp_IpAddr":     valueOr(data, "ipAddress", "127.0.0.1"),
		"vnp_Locale":     valueOr(data, "locale", "vn"),
		"vnp_OrderInfo":  valueOr(data, "orderInfo", "Thanh toan don hang "+payment.OrderID),
		"vnp_OrderType":  valueOr(data, "orderType", "other"),
		"vnp_ReturnUrl":  g.cfg.ReturnURL,
		"vnp_TxnRef":     payment.PaymentID,
		"vnp_BankCode":   data["bankCode"],
	}
	if g.cfg.ExpireAfter > 0 {
		params["vnp_ExpireDate"] = now.Add(g.cfg.ExpireAfter).Format(dateLayout)
	}
	return params, nil
}

// VerifyCallback проверяет vnp_SecureHash по всем vnp_* полям, кроме полей подписи,
// и только после этого разбирает код ответа
func (g *Gateway) VerifyCallback(ctx context.Context, fields map[string]string) (gateway.CallbackResult, error) {
	provided := fields[fieldSecureHash]
	keys := signature.KeysWithPrefix(fields, "vnp_", fieldSecureHash, fieldSecureHashType)
	canonical := signature.Canonical(fields, keys, signature.SkipEmpty(), signature.WithEscape(url.QueryEscape))

	if provided == "" || !g.codec.Verify(canonical, provided) {
		return gateway.CallbackResult{
			Verified:     false,
			ErrorMessage: gateway.MsgInvalidSignature,
		}, nil
	}

	res := gateway.CallbackResult{
		Verified:      true,
		PaymentID:     fields["vnp_TxnRef"],
		TransactionID: fields["vnp_TransactionNo"],
		ResultCode:    fields["vnp_ResponseCode"],
	}

	if raw := fields["vnp_Amount"]; raw != "" {
		minor, err := decimal.NewFromString(raw)
		if err != nil {
			res.ErrorMessage = fmt.Sprintf("invalid vnp_Amount: %s", raw)
			return res, nil
		}
		amount := minor.Shift(-2)
		res.Amount = &amount
	}

	txStatus := fields["vnp_TransactionStatus"]
	res.Success = res.ResultCode == codeSuccess && (txStatus == "" || txStatus == codeSuccess)
	if !res.Success {
		res.ErrorMessage = describe(res.ResultCode)
	}
	return res, nil
}

// ProcessRefund возвраты через VNPay не подключены
func (g *Gateway) ProcessRefund(ctx context.Context, payment repository.Payment, amount decimal.Decimal, reason string) (gateway.RefundResult, error) {
	return gateway.RefundResult{
		Success:      false,
		Unsupported:  true,
		ErrorMessage: RefundNotImplemented,
	}, nil
}

func describe(code string) string {
	if msg, ok := responseMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Payment failed with response code %s", code)
}

func valueOr(data map[string]string, key, fallback string) string {
	if v := strings.TrimSpace(data[key]); v != "" {
		return v
	}
	return fallback
}

func mapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
