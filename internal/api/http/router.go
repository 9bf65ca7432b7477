package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformhealth "github.com/shestoi/GoBigTech/payment-core/platform/health/http"
	platformobservability "github.com/shestoi/GoBigTech/payment-core/platform/observability"
)

const serviceName = "payment-core"

// NewRouter создаёт и настраивает HTTP роутер payment-core.
// checks - проверки готовности зависимостей для /health (например, ping Redis).
// metrics - handler для /metrics; nil отключает endpoint.
func NewRouter(handler *Handler, checks []platformhealth.Check, metrics http.Handler, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	// Observability: trace context + span на каждый запрос, logger с trace_id в контексте
	if logger != nil {
		router.Use(platformobservability.HTTPMiddleware(serviceName, logger))
	}

	router.Route("/payments", func(r chi.Router) {
		r.Post("/process", handler.ProcessPayment)
		r.Get("/order/{orderId}", handler.GetPaymentByOrder)
		r.Get("/history/{username}", handler.GetPaymentHistory)

		// уведомления провайдеров
		r.Post("/callback/momo", handler.MoMoCallback)
		r.Get("/callback/vnpay", handler.VNPayCallback)
		r.Get("/return/{gateway}", handler.PaymentReturn)

		r.Get("/{paymentId}", handler.GetPayment)
		r.Post("/{paymentId}/refund", handler.RefundPayment)
	})

	router.Get("/health", platformhealth.Handler(checks...))
	if metrics != nil {
		router.Handle("/metrics", metrics)
	}

	return router
}
