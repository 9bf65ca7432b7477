package momo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	platformobservability "github.com/shestoi/GoBigTech/payment-core/platform/observability"

	"github.com/shestoi/GoBigTech/payment-core/internal/gateway"
	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
	"github.com/shestoi/GoBigTech/payment-core/internal/signature"
)

const (
	createPath = "/v2/gateway/api/create"
	refundPath = "/v2/gateway/api/refund"

	resultSuccess = 0
)

// Поля, которые MoMo включает в подпись. Порядок в строке всегда алфавитный.
var (
	createSignedFields = []string{
		"accessKey", "amount", "extraData", "ipnUrl", "orderId", "orderInfo",
		"partnerCode", "redirectUrl", "requestId", "requestType",
	}
	ipnSignedFields = []string{
		"accessKey", "amount", "extraData", "message", "orderId", "orderInfo",
		"orderType", "partnerCode", "payType", "requestId", "responseTime",
		"resultCode", "transId",
	}
	refundSignedFields = []string{
		"accessKey", "amount", "description", "orderId", "partnerCode",
		"requestId", "transId",
	}
)

// ErrUnsupportedPayment сумма платежа не целая; MoMo принимает только целые донги
var ErrUnsupportedPayment = errors.New("payment not supported by momo")

// Config настройки MoMo
type Config struct {
	PartnerCode string `env:"MOMO_PARTNER_CODE"`
	AccessKey   string `env:"MOMO_ACCESS_KEY"`
	SecretKey   string `env:"MOMO_SECRET_KEY"`
	Endpoint    string `env:"MOMO_ENDPOINT" envDefault:"https://test-payment.momo.vn"`
	RedirectURL string `env:"MOMO_REDIRECT_URL" envDefault:"http://localhost:8080/payments/return/momo"`
	IPNURL      string `env:"MOMO_IPN_URL" envDefault:"http://localhost:8080/payments/callback/momo"`
	RequestType string `env:"MOMO_REQUEST_TYPE" envDefault:"captureWallet"`
	Lang        string `env:"MOMO_LANG" envDefault:"vi"`
}

// Gateway redirect-адаптер MoMo.
// HTTP клиент передаётся снаружи и разделяется между запросами.
type Gateway struct {
	cfg    Config
	codec  *signature.Codec
	client *http.Client
	logger *zap.Logger
	newID  func() string
}

// New создаёт адаптер MoMo
func New(cfg Config, client *http.Client, logger *zap.Logger) (*Gateway, error) {
	codec, err := signature.New(signature.SHA256, cfg.SecretKey)
	if err != nil {
		return nil, err
	}
	return &Gateway{
		cfg:    cfg,
		codec:  codec,
		client: client,
		logger: logger,
		newID:  uuid.NewString,
	}, nil
}

// Name имя адаптера
func (g *Gateway) Name() string {
	return gateway.NameMoMo
}

type createRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	RequestType string `json:"requestType"`
	ExtraData   string `json:"extraData"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type createResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	ResponseTime int64  `json:"responseTime"`
	Message      string `json:"message"`
	ResultCode   int    `json:"resultCode"`
	PayURL       string `json:"payUrl"`
	Deeplink     string `json:"deeplink"`
	QRCodeURL    string `json:"qrCodeUrl"`
}

// extraData payload, который MoMo возвращает в IPN без изменений
type extraData struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
}

// ProcessPayment регистрирует платёж у MoMo и возвращает payUrl.
// Success означает только "ссылка создана", результат придёт в IPN.
func (g *Gateway) ProcessPayment(ctx context.Context, payment repository.Payment, data map[string]string) (gateway.PaymentResult, error) {
	resp, err := g.create(ctx, payment, data)
	if err != nil {
		if errors.Is(err, ErrUnsupportedPayment) {
			return gateway.PaymentResult{Success: false, ErrorMessage: err.Error()}, nil
		}
		return gateway.PaymentResult{}, err
	}
	if resp.ResultCode != resultSuccess || resp.PayURL == "" {
		return gateway.PaymentResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("MoMo error %d: %s", resp.ResultCode, resp.Message),
		}, nil
	}
	return gateway.PaymentResult{
		Success:    true,
		Pending:    true,
		PaymentURL: resp.PayURL,
	}, nil
}

// CreatePaymentURL регистрирует платёж у MoMo и возвращает только ссылку
func (g *Gateway) CreatePaymentURL(ctx context.Context, payment repository.Payment, data map[string]string) (string, error) {
	resp, err := g.create(ctx, payment, data)
	if err != nil {
		return "", err
	}
	if resp.ResultCode != resultSuccess {
		return "", fmt.Errorf("momo create payment: result %d: %s", resp.ResultCode, resp.Message)
	}
	return resp.PayURL, nil
}

func (g *Gateway) create(ctx context.Context, payment repository.Payment, data map[string]string) (createResponse, error) {
	amount, err := wholeVND(payment)
	if err != nil {
		return createResponse{}, err
	}

	extra, err := json.Marshal(extraData{PaymentID: payment.PaymentID, OrderID: payment.OrderID})
	if err != nil {
		return createResponse{}, fmt.Errorf("failed to marshal extraData: %w", err)
	}

	orderInfo := strings.TrimSpace(data["orderInfo"])
	if orderInfo == "" {
		orderInfo = "Thanh toan don hang " + payment.OrderID
	}

	req := createRequest{
		PartnerCode: g.cfg.PartnerCode,
		RequestID:   g.newID(),
		Amount:      amount,
		OrderID:     payment.PaymentID, // orderId у MoMo уникален на каждый платёж
		OrderInfo:   orderInfo,
		RedirectURL: g.cfg.RedirectURL,
		IPNURL:      g.cfg.IPNURL,
		RequestType: g.cfg.RequestType,
		ExtraData:   base64.StdEncoding.EncodeToString(extra),
		Lang:        g.cfg.Lang,
	}
	req.Signature = g.codec.Sign(signature.Canonical(map[string]string{
		"accessKey":   g.cfg.AccessKey,
		"amount":      strconv.FormatInt(req.Amount, 10),
		"extraData":   req.ExtraData,
		"ipnUrl":      req.IPNURL,
		"orderId":     req.OrderID,
		"orderInfo":   req.OrderInfo,
		"partnerCode": req.PartnerCode,
		"redirectUrl": req.RedirectURL,
		"requestId":   req.RequestID,
		"requestType": req.RequestType,
	}, createSignedFields))

	var resp createResponse
	if err := g.post(ctx, createPath, req, &resp); err != nil {
		g.logger.Error("momo create payment failed",
			zap.Error(err),
			zap.String("payment_id", payment.PaymentID),
		)
		return createResponse{}, err
	}

	g.logger.Info("momo create payment response",
		zap.String("payment_id", payment.PaymentID),
		zap.Int("result_code", resp.ResultCode),
		zap.String("message", resp.Message),
	)
	return resp, nil
}

// VerifyCallback проверяет подпись IPN по фиксированному списку полей.
// accessKey в IPN не приходит и берётся из конфигурации.
func (g *Gateway) VerifyCallback(ctx context.Context, fields map[string]string) (gateway.CallbackResult, error) {
	signed := make(map[string]string, len(ipnSignedFields))
	for _, k := range ipnSignedFields {
		signed[k] = fields[k]
	}
	signed["accessKey"] = g.cfg.AccessKey

	provided := fields["signature"]
	if provided == "" || !g.codec.Verify(signature.Canonical(signed, ipnSignedFields), provided) {
		return gateway.CallbackResult{
			Verified:     false,
			ErrorMessage: gateway.MsgInvalidSignature,
		}, nil
	}

	res := gateway.CallbackResult{
		Verified:      true,
		PaymentID:     fields["orderId"],
		TransactionID: fields["transId"],
		ResultCode:    fields["resultCode"],
	}
	if extra, ok := decodeExtraData(fields["extraData"]); ok && extra.PaymentID != "" {
		res.PaymentID = extra.PaymentID
	}

	if raw := fields["amount"]; raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			res.ErrorMessage = fmt.Sprintf("invalid amount: %s", raw)
			return res, nil
		}
		res.Amount = &amount
	}

	res.Success = res.ResultCode == strconv.Itoa(resultSuccess)
	if !res.Success {
		res.ErrorMessage = fields["message"]
		if res.ErrorMessage == "" {
			res.ErrorMessage = "MoMo result code " + res.ResultCode
		}
	}
	return res, nil
}

type refundRequest struct {
	PartnerCode string `json:"partnerCode"`
	OrderID     string `json:"orderId"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	TransID     int64  `json:"transId"`
	Lang        string `json:"lang"`
	Description string `json:"description"`
	Signature   string `json:"signature"`
}

type refundResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	ResponseTime int64  `json:"responseTime"`
}

// ProcessRefund возвращает amount по transId исходного платежа
func (g *Gateway) ProcessRefund(ctx context.Context, payment repository.Payment, amount decimal.Decimal, reason string) (gateway.RefundResult, error) {
	transID, err := strconv.ParseInt(payment.TransactionID, 10, 64)
	if err != nil {
		return gateway.RefundResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("payment has no MoMo transId: %q", payment.TransactionID),
		}, nil
	}
	if !amount.IsInteger() || !amount.IsPositive() {
		return gateway.RefundResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("MoMo refunds whole VND amounts only, got %s", amount),
		}, nil
	}

	req := refundRequest{
		PartnerCode: g.cfg.PartnerCode,
		OrderID:     g.newID(),
		RequestID:   g.newID(),
		Amount:      amount.IntPart(),
		TransID:     transID,
		Lang:        g.cfg.Lang,
		Description: reason,
	}
	req.Signature = g.codec.Sign(signature.Canonical(map[string]string{
		"accessKey":   g.cfg.AccessKey,
		"amount":      strconv.FormatInt(req.Amount, 10),
		"description": req.Description,
		"orderId":     req.OrderID,
		"partnerCode": req.PartnerCode,
		"requestId":   req.RequestID,
		"transId":     strconv.FormatInt(req.TransID, 10),
	}, refundSignedFields))

	var resp refundResponse
	if err := g.post(ctx, refundPath, req, &resp); err != nil {
		g.logger.Error("momo refund failed",
			zap.Error(err),
			zap.String("payment_id", payment.PaymentID),
		)
		return gateway.RefundResult{}, err
	}

	if resp.ResultCode != resultSuccess {
		return gateway.RefundResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("MoMo error %d: %s", resp.ResultCode, resp.Message),
		}, nil
	}
	return gateway.RefundResult{
		Success:  true,
		RefundID: strconv.FormatInt(resp.TransID, 10),
	}, nil
}

// post отправляет JSON в MoMo и декодирует ответ; trace context пробрасывается в заголовки
func (g *Gateway) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(g.cfg.Endpoint, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	platformobservability.InjectHTTP(ctx, req.Header)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// MoMo отвечает 200 и на бизнес-ошибки, поэтому тело читаем и при 4xx
	if resp.StatusCode >= http.StatusInternalServerError {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("momo API status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

// wholeVND сумма в целых донгах; код валюты платежа не проверяется
func wholeVND(payment repository.Payment) (int64, error) {
	if !payment.Amount.IsInteger() || !payment.Amount.IsPositive() {
		return 0, fmt.Errorf("%w: amount %s must be a positive whole number", ErrUnsupportedPayment, payment.Amount)
	}
	return payment.Amount.IntPart(), nil
}

func decodeExtraData(raw string) (extraData, bool) {
	if raw == "" {
		return extraData{}, false
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return extraData{}, false
	}
	var extra extraData
	if err := json.Unmarshal(decoded, &extra); err != nil {
		return extraData{}, false
	}
	return extra, true
}
