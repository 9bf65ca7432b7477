package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	platformobservability "github.com/shestoi/GoBigTech/payment-core/platform/observability"

	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
	"github.com/shestoi/GoBigTech/payment-core/internal/service"
)

const maxBodyBytes = 1 << 20

// Handler содержит HTTP-обработчики payment-core.
// Бизнес-логики здесь нет: разбор запроса, валидация, вызов PaymentService, ответ.
type Handler struct {
	paymentService *service.PaymentService
	validate       *validator.Validate
	logger         *zap.Logger
}

// NewHandler создаёт новый HTTP handler
func NewHandler(paymentService *service.PaymentService, logger *zap.Logger) *Handler {
	return &Handler{
		paymentService: paymentService,
		validate:       newValidator(),
		logger:         logger,
	}
}

// ProcessPayment обрабатывает POST /payments/process.
// Отказ шлюза не ошибка HTTP: 200 с status=Failed и причиной в message.
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req ProcessPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	method, err := repository.ParseMethod(req.PaymentMethod)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payload", Details: err.Error()})
		return
	}

	out, err := h.paymentService.ProcessPayment(r.Context(), service.ProcessPaymentInput{
		OrderID:      req.OrderID,
		Username:     req.Username,
		EmailAddress: req.EmailAddress,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Method:       method,
		Gateway:      req.Gateway,
		Data:         req.AuxiliaryData,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponse(out))
}

// GetPayment обрабатывает GET /payments/{paymentId}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.paymentService.GetPayment(r.Context(), chi.URLParam(r, "paymentId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(p))
}

// GetPaymentByOrder обрабатывает GET /payments/order/{orderId}
func (h *Handler) GetPaymentByOrder(w http.ResponseWriter, r *http.Request) {
	p, err := h.paymentService.GetPaymentByOrderID(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(p))
}

// GetPaymentHistory обрабатывает GET /payments/history/{username}?limit=N
func (h *Handler) GetPaymentHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid limit", Details: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	payments, err := h.paymentService.GetPaymentHistory(r.Context(), chi.URLParam(r, "username"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]PaymentStatusResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, toStatusResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// RefundPayment обрабатывает POST /payments/{paymentId}/refund
func (h *Handler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.paymentService.RefundPayment(r.Context(), service.RefundInput{
		PaymentID: chi.URLParam(r, "paymentId"),
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponse(out))
}

// decode читает JSON тело и валидирует его; при ошибке сам пишет 400
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON", Details: err.Error()})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payload", Details: validationDetails(err)})
		return false
	}
	return true
}

// writeError переводит ошибки сервиса в HTTP статусы
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		platformobservability.L(r.Context(), h.logger).Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		writeJSON(w, status, ErrorResponse{Error: "service temporarily unavailable"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrRefundRejected):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrPaymentNotFound), errors.Is(err, service.ErrUnknownGateway):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrRefundExceedsBalance):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotRefundable), errors.Is(err, service.ErrCallbackAmountMismatch):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}

func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed on %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
