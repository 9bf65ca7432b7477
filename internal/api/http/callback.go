package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	platformobservability "github.com/shestoi/GoBigTech/payment-core/platform/observability"

	"github.com/shestoi/GoBigTech/payment-core/internal/gateway"
	"github.com/shestoi/GoBigTech/payment-core/internal/service"
)

// Коды подтверждения IPN, которые ожидает VNPay
const (
	vnpayRspConfirmed        = "00"
	vnpayRspOrderNotFound    = "01"
	vnpayRspAlreadyConfirmed = "02"
	vnpayRspInvalidAmount    = "04"
	vnpayRspInvalidSignature = "97"
	vnpayRspUnknownError     = "99"
)

// VNPayAck тело ответа на IPN VNPay
type VNPayAck struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// MoMoCallback обрабатывает POST /payments/callback/momo (IPN в JSON).
// MoMo ждёт 204 на принятое уведомление; повтор по завершённому платежу тоже 204.
func (h *Handler) MoMoCallback(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeJSONFields(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON", Details: err.Error()})
		return
	}

	if _, err := h.paymentService.HandleCallback(r.Context(), gateway.NameMoMo, fields); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VNPayCallback обрабатывает GET /payments/callback/vnpay (IPN в query).
// VNPay всегда получает 200, результат передаётся кодом RspCode.
func (h *Handler) VNPayCallback(w http.ResponseWriter, r *http.Request) {
	out, err := h.paymentService.HandleCallback(r.Context(), gateway.NameVNPay, queryFields(r))

	ack := VNPayAck{RspCode: vnpayRspConfirmed, Message: "Confirm Success"}
	switch {
	case err == nil && out.Replayed:
		ack = VNPayAck{RspCode: vnpayRspAlreadyConfirmed, Message: "Order already confirmed"}
	case err == nil:
	case errors.Is(err, service.ErrInvalidSignature):
		ack = VNPayAck{RspCode: vnpayRspInvalidSignature, Message: "Invalid signature"}
	case errors.Is(err, service.ErrPaymentNotFound):
		ack = VNPayAck{RspCode: vnpayRspOrderNotFound, Message: "Order not found"}
	case errors.Is(err, service.ErrCallbackAmountMismatch):
		ack = VNPayAck{RspCode: vnpayRspInvalidAmount, Message: "Invalid amount"}
	default:
		platformobservability.L(r.Context(), h.logger).Error("vnpay callback failed", zap.Error(err))
		ack = VNPayAck{RspCode: vnpayRspUnknownError, Message: "Unknown error"}
	}

	writeJSON(w, http.StatusOK, ack)
}

// PaymentReturn обрабатывает GET /payments/return/{gateway}: сюда провайдер
// возвращает покупателя с теми же подписанными полями, что и в IPN
func (h *Handler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	out, err := h.paymentService.HandleCallback(r.Context(), chi.URLParam(r, "gateway"), queryFields(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(out))
}

func queryFields(r *http.Request) map[string]string {
	query := r.URL.Query()
	fields := make(map[string]string, len(query))
	for k := range query {
		fields[k] = query.Get(k)
	}
	return fields
}

// decodeJSONFields разбирает плоский JSON-объект в строки; числа остаются в исходной записи
func decodeJSONFields(body io.Reader) (map[string]string, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			fields[k] = ""
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		case bool:
			fields[k] = fmt.Sprint(val)
		default:
			var buf bytes.Buffer
			if err := json.NewEncoder(&buf).Encode(val); err != nil {
				return nil, err
			}
			fields[k] = string(bytes.TrimSpace(buf.Bytes()))
		}
	}
	return fields, nil
}
