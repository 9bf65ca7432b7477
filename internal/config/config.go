package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	platformkafka "github.com/shestoi/GoBigTech/payment-core/platform/kafka"
	platformobservability "github.com/shestoi/GoBigTech/payment-core/platform/observability"

	"github.com/shestoi/GoBigTech/payment-core/internal/gateway/mock"
	"github.com/shestoi/GoBigTech/payment-core/internal/gateway/momo"
	"github.com/shestoi/GoBigTech/payment-core/internal/gateway/vnpay"
)

// Env представляет окружение приложения
type Env string

const (
	// EnvLocal - локальное окружение (для разработки на хосте)
	EnvLocal Env = "local"
	// EnvDocker - Docker окружение (для запуска в контейнерах)
	EnvDocker Env = "docker"
)

// Хранилища платежей
const (
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Config содержит конфигурацию payment-core
type Config struct {
	AppEnv          Env
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string

	// Хранилище
	StorageBackend string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	PaymentTTL     time.Duration

	// Оркестратор
	GatewayTimeout time.Duration
	HistoryLimit   int

	// OpenTelemetry
	OTelEnabled       bool
	OTelExporter      string
	OTelEndpoint      string
	OTelSamplingRatio float64

	Kafka platformkafka.Config

	// Шлюзы; MoMo и VNPay регистрируются, только если заданы ключи
	Mock  mock.Config
	MoMo  momo.Config
	VNPay vnpay.Config
}

// Load загружает конфигурацию из переменных окружения
// Читает APP_ENV и устанавливает дефолты в зависимости от окружения
func Load() (Config, error) {
	cfg := Config{}

	appEnvStr := getString("APP_ENV", string(EnvLocal))
	appEnv := Env(appEnvStr)
	if appEnv != EnvLocal && appEnv != EnvDocker {
		return Config{}, fmt.Errorf("invalid APP_ENV: %s (must be 'local' or 'docker')", appEnvStr)
	}
	cfg.AppEnv = appEnv

	var err error

	// HTTP_ADDR
	if cfg.AppEnv == EnvLocal {
		cfg.HTTPAddr = getString("HTTP_ADDR", "127.0.0.1:8080")
	} else {
		cfg.HTTPAddr = getString("HTTP_ADDR", "0.0.0.0:8080")
	}

	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	cfg.LogLevel = getString("LOG_LEVEL", "info")
	cfg.LogFormat = getString("LOG_FORMAT", "")

	// Хранилище
	cfg.StorageBackend = strings.ToLower(getString("STORAGE_BACKEND", StorageRedis))
	if cfg.AppEnv == EnvLocal {
		cfg.RedisAddr = getString("REDIS_ADDR", "127.0.0.1:16379")
	} else {
		cfg.RedisAddr = getString("REDIS_ADDR", "redis:6379")
	}
	cfg.RedisPassword = getString("REDIS_PASSWORD", "")
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.PaymentTTL, err = getDuration("PAYMENT_TTL", 90*24*time.Hour); err != nil {
		return Config{}, err
	}

	if cfg.GatewayTimeout, err = getDuration("GATEWAY_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.HistoryLimit, err = getInt("HISTORY_LIMIT", 50); err != nil {
		return Config{}, err
	}

	// OpenTelemetry
	cfg.OTelEnabled = getBool("OTEL_ENABLED", false)
	cfg.OTelExporter = getString("OTEL_EXPORTER", platformobservability.ExporterOTLP)
	if cfg.AppEnv == EnvLocal {
		cfg.OTelEndpoint = getString("OTEL_EXPORTER_OTLP_ENDPOINT", "127.0.0.1:4317")
	} else {
		cfg.OTelEndpoint = getString("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317")
	}
	if cfg.OTelSamplingRatio, err = getFloat64("OTEL_SAMPLING_RATIO", 1.0); err != nil {
		return Config{}, err
	}

	// Kafka
	if err := platformkafka.LoadEnv(&cfg.Kafka); err != nil {
		return Config{}, err
	}
	if cfg.AppEnv == EnvDocker && os.Getenv("KAFKA_BROKERS") == "" {
		cfg.Kafka.Brokers = []string{"kafka:9092"}
	}

	// Шлюзы
	if err := env.Parse(&cfg.Mock); err != nil {
		return Config{}, fmt.Errorf("failed to parse mock gateway config: %w", err)
	}
	if err := env.Parse(&cfg.MoMo); err != nil {
		return Config{}, fmt.Errorf("failed to parse momo gateway config: %w", err)
	}
	if err := env.Parse(&cfg.VNPay); err != nil {
		return Config{}, fmt.Errorf("failed to parse vnpay gateway config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// MoMoEnabled заданы ли ключи MoMo
func (c Config) MoMoEnabled() bool {
	return c.MoMo.PartnerCode != "" && c.MoMo.AccessKey != "" && c.MoMo.SecretKey != ""
}

// VNPayEnabled заданы ли ключи VNPay
func (c Config) VNPayEnabled() bool {
	return c.VNPay.TmnCode != "" && c.VNPay.HashSecret != ""
}

// Validate проверяет корректность конфигурации
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	switch c.StorageBackend {
	case StorageRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STORAGE_BACKEND=redis")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND: %s (must be 'redis' or 'memory')", c.StorageBackend)
	}
	if c.PaymentTTL <= 0 {
		return fmt.Errorf("PAYMENT_TTL must be positive")
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	if c.HistoryLimit <= 0 || c.HistoryLimit > 100 {
		return fmt.Errorf("HISTORY_LIMIT must be between 1 and 100")
	}
	if c.OTelEnabled {
		if c.OTelExporter != platformobservability.ExporterOTLP && c.OTelExporter != platformobservability.ExporterStdout {
			return fmt.Errorf("invalid OTEL_EXPORTER: %s (must be 'otlp' or 'stdout')", c.OTelExporter)
		}
		if c.OTelExporter == platformobservability.ExporterOTLP && c.OTelEndpoint == "" {
			return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_EXPORTER=otlp")
		}
	}
	if c.OTelSamplingRatio < 0 || c.OTelSamplingRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.Mock.SuccessRate < 0 || c.Mock.SuccessRate > 1 {
		return fmt.Errorf("MOCK_SUCCESS_RATE must be between 0 and 1")
	}
	return nil
}

// Log выводит конфигурацию в лог
func (c Config) Log() {
	log.Printf("Config loaded:")
	log.Printf("  APP_ENV: %s", c.AppEnv)
	log.Printf("  HTTP_ADDR: %s", c.HTTPAddr)
	log.Printf("  SHUTDOWN_TIMEOUT: %s", c.ShutdownTimeout)
	log.Printf("  LOG_LEVEL: %s", c.LogLevel)
	log.Printf("  STORAGE_BACKEND: %s", c.StorageBackend)
	if c.StorageBackend == StorageRedis {
		log.Printf("  REDIS_ADDR: %s", c.RedisAddr)
		log.Printf("  REDIS_DB: %d", c.RedisDB)
	}
	log.Printf("  PAYMENT_TTL: %s", c.PaymentTTL)
	log.Printf("  GATEWAY_TIMEOUT: %s", c.GatewayTimeout)
	log.Printf("  HISTORY_LIMIT: %d", c.HistoryLimit)
	log.Printf("  OTEL_ENABLED: %v", c.OTelEnabled)
	if c.OTelEnabled {
		log.Printf("  OTEL_EXPORTER: %s", c.OTelExporter)
		log.Printf("  OTEL_EXPORTER_OTLP_ENDPOINT: %s", c.OTelEndpoint)
		log.Printf("  OTEL_SAMPLING_RATIO: %.2f", c.OTelSamplingRatio)
	}
	log.Printf("  KAFKA_ENABLED: %v", c.Kafka.Enabled)
	if c.Kafka.Enabled {
		log.Printf("  KAFKA_BROKERS: %v", c.Kafka.Brokers)
	}
	log.Printf("  MOCK_SUCCESS_RATE: %.2f", c.Mock.SuccessRate)
	log.Printf("  MOMO_ENABLED: %v", c.MoMoEnabled())
	if c.MoMoEnabled() {
		log.Printf("  MOMO_PARTNER_CODE: %s", c.MoMo.PartnerCode)
		log.Printf("  MOMO_SECRET_KEY: %s", maskSecret(c.MoMo.SecretKey))
	}
	log.Printf("  VNPAY_ENABLED: %v", c.VNPayEnabled())
	if c.VNPayEnabled() {
		log.Printf("  VNPAY_TMN_CODE: %s", c.VNPay.TmnCode)
		log.Printf("  VNPAY_HASH_SECRET: %s", maskSecret(c.VNPay.HashSecret))
	}
}

// getString читает переменную окружения или возвращает дефолт
func getString(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getBool читает булеву переменную окружения или возвращает дефолт
func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getFloat64(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

// maskSecret оставляет первые 4 символа секрета для логов
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "***"
	}
	return s[:4] + "***"
}
