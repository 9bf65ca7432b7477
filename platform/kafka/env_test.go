package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadEnv_Defaults(t *testing.T) {
	var cfg Config
	require.NoError(t, LoadEnv(&cfg))

	require.False(t, cfg.Enabled)
	require.Equal(t, []string{"localhost:19092"}, cfg.Brokers)
	require.Equal(t, 5*time.Second, cfg.WriteTimeout)
	require.Equal(t, "payment.succeeded", cfg.Topics.PaymentSucceeded)
	require.Equal(t, "payment.failed", cfg.Topics.PaymentFailed)
	require.Equal(t, "payment.refunded", cfg.Topics.PaymentRefunded)
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("KAFKA_TOPIC_PAYMENT_FAILED", "payments.failed.v2")

	var cfg Config
	require.NoError(t, LoadEnv(&cfg))

	require.True(t, cfg.Enabled)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	require.Equal(t, "payments.failed.v2", cfg.Topics.PaymentFailed)

	w := NewWriter(cfg)
	require.NotNil(t, w.Addr)
	require.Empty(t, w.Topic)
	require.Equal(t, 5*time.Second, w.WriteTimeout)
}

func TestLoadEnv_EnabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " , ")

	var cfg Config
	require.Error(t, LoadEnv(&cfg))
}
