package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	platformhealth "github.com/shestoi/GoBigTech/payment-core/platform/health/http"
	platformkafka "github.com/shestoi/GoBigTech/payment-core/platform/kafka"
	platformlogging "github.com/shestoi/GoBigTech/payment-core/platform/logging"
	platformobservability "github.com/shestoi/GoBigTech/payment-core/platform/observability"
	platformshutdown "github.com/shestoi/GoBigTech/payment-core/platform/shutdown"

	httpapi "github.com/shestoi/GoBigTech/payment-core/internal/api/http"
	"github.com/shestoi/GoBigTech/payment-core/internal/config"
	eventkafka "github.com/shestoi/GoBigTech/payment-core/internal/event/kafka"
	"github.com/shestoi/GoBigTech/payment-core/internal/gateway"
	"github.com/shestoi/GoBigTech/payment-core/internal/gateway/mock"
	"github.com/shestoi/GoBigTech/payment-core/internal/gateway/momo"
	"github.com/shestoi/GoBigTech/payment-core/internal/gateway/vnpay"
	"github.com/shestoi/GoBigTech/payment-core/internal/metrics"
	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
	"github.com/shestoi/GoBigTech/payment-core/internal/repository/memory"
	redisrepo "github.com/shestoi/GoBigTech/payment-core/internal/repository/redis"
	"github.com/shestoi/GoBigTech/payment-core/internal/service"
)

const serviceName = "payment-core"

// App содержит все зависимости для запуска и корректного shutdown payment-core
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	shutdownMgr *platformshutdown.Manager
	wg          sync.WaitGroup
}

// Build создаёт и настраивает все зависимости payment-core
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	const op = "app.Build"

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: serviceName,
		Env:         string(cfg.AppEnv),
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: logger: %w", op, err)
	}

	logger = logger.With(zap.String("op", op))
	logger.Info("Building payment-core", zap.String("http_addr", cfg.HTTPAddr))

	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)

	// OpenTelemetry: при OTEL_ENABLED=false ставятся noop провайдеры
	otelShutdown, err := platformobservability.Init(ctx, platformobservability.Config{
		Enabled:               cfg.OTelEnabled,
		Exporter:              cfg.OTelExporter,
		OTLPEndpoint:          cfg.OTelEndpoint,
		SamplingRatio:         cfg.OTelSamplingRatio,
		ServiceName:           serviceName,
		DeploymentEnvironment: string(cfg.AppEnv),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: otel: %w", op, err)
	}
	shutdownMgr.Add("otel", otelShutdown)

	// Хранилище
	var (
		repo   repository.PaymentRepository
		checks []platformhealth.Check
	)
	switch cfg.StorageBackend {
	case config.StorageRedis:
		logger.Info("Connecting to Redis", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			return nil, errors.Join(fmt.Errorf("%s: redis ping: %w", op, err), shutdownMgr.Shutdown())
		}
		logger.Info("Redis connection established")

		shutdownMgr.Add("redis", platformshutdown.Close(client))
		checks = append(checks, platformhealth.Check{
			Name: "redis",
			Fn: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
		})
		repo = redisrepo.NewPaymentRepository(client, cfg.PaymentTTL, logger)
	default:
		logger.Warn("Using in-memory payment storage, data is lost on restart")
		repo = memory.NewMemoryRepository(cfg.PaymentTTL)
	}

	// Шлюзы: mock всегда зарегистрирован и служит fallback
	gateways := []gateway.Gateway{}
	if cfg.MoMoEnabled() {
		momoGw, err := momo.New(cfg.MoMo, &http.Client{Timeout: cfg.GatewayTimeout}, logger)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("%s: momo: %w", op, err), shutdownMgr.Shutdown())
		}
		gateways = append(gateways, momoGw)
	}
	if cfg.VNPayEnabled() {
		vnpayGw, err := vnpay.New(cfg.VNPay)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("%s: vnpay: %w", op, err), shutdownMgr.Shutdown())
		}
		gateways = append(gateways, vnpayGw)
	}
	registry := gateway.NewRegistry(mock.New(cfg.Mock), gateways...)
	logger.Info("Payment gateways registered", zap.Strings("gateways", registry.Names()))

	// События
	var publisher service.EventPublisher
	if cfg.Kafka.Enabled {
		logger.Info("Kafka publisher enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
		kafkaPublisher := eventkafka.NewPaymentEventPublisher(logger, platformkafka.NewWriter(cfg.Kafka), cfg.Kafka.Topics)
		shutdownMgr.Add("kafka_writer", platformshutdown.Close(kafkaPublisher))
		publisher = kafkaPublisher
	} else {
		logger.Info("Kafka disabled, payment events are logged only")
		publisher = eventkafka.NewNoopPublisher(logger)
	}

	// Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	paymentService := service.NewPaymentService(repo, registry, publisher, metrics.New(reg), logger, service.Options{
		GatewayTimeout: cfg.GatewayTimeout,
		HistoryLimit:   cfg.HistoryLimit,
	})
	// дождаться событий, отправленных в фоне, до закрытия kafka writer
	shutdownMgr.Add("payment_events", paymentService.Wait)

	handler := httpapi.NewHandler(paymentService, logger)
	router := httpapi.NewRouter(handler, checks, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	// HTTP сервер останавливается первым
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))

	return &App{
		logger:      logger,
		httpServer:  httpServer,
		shutdownMgr: shutdownMgr,
	}, nil
}

// Run запускает сервис и блокируется до получения сигнала shutdown или отмены ctx
func (a *App) Run(ctx context.Context) error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting payment-core", zap.String("addr", a.httpServer.Addr))
	a.logger.Info("Health check available", zap.String("url", "http://"+a.httpServer.Addr+"/health"))

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var serveErr error
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", zap.Error(err))
			serveErr = err
			cancel()
		}
	}()

	err := a.shutdownMgr.Wait(waitCtx)

	a.wg.Wait()
	a.logger.Info("payment-core stopped")
	return errors.Join(serveErr, err)
}
