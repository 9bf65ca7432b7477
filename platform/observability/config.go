package observability

// Экспортёры трасс
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

// Config конфигурация OpenTelemetry (traces + metrics + propagator)
type Config struct {
	// Enabled включить экспорт трасс и метрик
	Enabled bool
	// Exporter "otlp" (collector по gRPC) или "stdout" (трассы в stdout, метрики выключены)
	Exporter string
	// OTLPEndpoint адрес OTLP gRPC, например "127.0.0.1:4317" или "otel-collector:4317"
	OTLPEndpoint string
	// SamplingRatio доля трасс для семплирования (0..1), 1.0 = все
	SamplingRatio float64
	// ServiceName имя сервиса в resource
	ServiceName string
	// DeploymentEnvironment окружение (local, docker)
	DeploymentEnvironment string
	// ServiceVersion опционально, например из build
	ServiceVersion string
}
