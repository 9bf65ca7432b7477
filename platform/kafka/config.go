package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// Config содержит конфигурацию для подключения к Kafka
type Config struct {
	// Enabled false отключает публикацию, события только логируются
	Enabled bool `env:"KAFKA_ENABLED" envDefault:"false"`
	// Brokers список брокеров; локально localhost:19092, в Docker kafka:9092.
	// Несколько брокеров через запятую: "broker1:9092,broker2:9092"
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:19092"`
	// WriteTimeout ограничение на запись одного батча
	WriteTimeout time.Duration `env:"KAFKA_WRITE_TIMEOUT" envDefault:"5s"`
	// Topics топики по типам событий
	Topics Topics
}

// Topics доменные топики событий платежей
type Topics struct {
	PaymentSucceeded string `env:"KAFKA_TOPIC_PAYMENT_SUCCEEDED" envDefault:"payment.succeeded"`
	PaymentFailed    string `env:"KAFKA_TOPIC_PAYMENT_FAILED" envDefault:"payment.failed"`
	PaymentRefunded  string `env:"KAFKA_TOPIC_PAYMENT_REFUNDED" envDefault:"payment.refunded"`
}

// NewWriter создаёт writer без фиксированного топика: топик задаётся в каждом сообщении
func NewWriter(cfg Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}
