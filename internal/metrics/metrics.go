package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "payment"

// Metrics набор Prometheus метрик платёжного ядра
type Metrics struct {
	payments        *prometheus.CounterVec
	refunds         *prometheus.CounterVec
	callbacks       *prometheus.CounterVec
	events          *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
}

// New регистрирует метрики в reg.
// В тестах передаётся prometheus.NewRegistry(), чтобы не пересекаться с глобальным реестром.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		payments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payments by gateway and resulting status.",
		}, []string{"gateway", "status"}),
		refunds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_total",
			Help:      "Refund attempts by gateway and outcome.",
		}, []string{"gateway", "outcome"}),
		callbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Provider callbacks by gateway and outcome.",
		}, []string{"gateway", "outcome"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Payment events by type and publish outcome.",
		}, []string{"event_type", "outcome"}),
		gatewayDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of gateway adapter calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"gateway", "operation", "outcome"}),
	}
}

// ObservePayment учитывает платёж в итоговом статусе
func (m *Metrics) ObservePayment(gateway, status string) {
	m.payments.WithLabelValues(gateway, status).Inc()
}

// ObserveRefund учитывает попытку возврата
func (m *Metrics) ObserveRefund(gateway, outcome string) {
	m.refunds.WithLabelValues(gateway, outcome).Inc()
}

// ObserveCallback учитывает уведомление провайдера
func (m *Metrics) ObserveCallback(gateway, outcome string) {
	m.callbacks.WithLabelValues(gateway, outcome).Inc()
}

// ObserveEvent учитывает публикацию события
func (m *Metrics) ObserveEvent(eventType string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}

// ObserveGatewayCall пишет длительность вызова адаптера
func (m *Metrics) ObserveGatewayCall(gateway, operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gatewayDuration.WithLabelValues(gateway, operation, outcome).Observe(time.Since(start).Seconds())
}
