package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Manager управляет graceful shutdown сервиса.
// Зарегистрированные функции выполняются в обратном порядке регистрации,
// каждая со своим таймаутом.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	funcs []shutdownFunc
	once  sync.Once
	err   error
}

type shutdownFunc struct {
	name string
	fn   func(context.Context) error
}

// New создаёт новый Manager с указанным таймаутом на одну функцию
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Add регистрирует shutdown функцию. Регистрировать в порядке запуска ресурсов:
// сначала хранилище, последним HTTP-сервер.
func (m *Manager) Add(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, shutdownFunc{name: name, fn: fn})
}

// Wait блокируется до SIGINT/SIGTERM или отмены ctx, затем вызывает Shutdown
func (m *Manager) Wait(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	m.logger.Info("Received shutdown signal, starting graceful shutdown")
	return m.Shutdown()
}

// Shutdown выполняет зарегистрированные функции; повторные вызовы возвращают первый результат.
// Ошибка одной функции не останавливает остальные.
func (m *Manager) Shutdown() error {
	m.once.Do(func() {
		m.mu.Lock()
		funcs := make([]shutdownFunc, len(m.funcs))
		copy(funcs, m.funcs)
		m.mu.Unlock()

		var errs []error
		for i := len(funcs) - 1; i >= 0; i-- {
			if err := m.run(funcs[i]); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", funcs[i].name, err))
			}
		}
		m.err = errors.Join(errs...)
		m.logger.Info("Graceful shutdown completed")
	})
	return m.err
}

func (m *Manager) run(f shutdownFunc) error {
	m.logger.Info("Executing shutdown function", zap.String("name", f.name))

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	start := time.Now()
	err := f.fn(ctx)
	duration := time.Since(start)
	if err != nil {
		m.logger.Error("Shutdown function failed",
			zap.String("name", f.name),
			zap.Error(err),
			zap.Duration("duration", duration))
		return err
	}
	m.logger.Info("Shutdown function completed",
		zap.String("name", f.name),
		zap.Duration("duration", duration))
	return nil
}

// ShutdownHTTPServer возвращает shutdown функцию для http.Server
func ShutdownHTTPServer(srv interface {
	Shutdown(context.Context) error
}) func(context.Context) error {
	return func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}
}

// Close возвращает shutdown функцию для клиентов с Close() error (redis, kafka writer)
func Close(c interface {
	Close() error
}) func(context.Context) error {
	return func(context.Context) error {
		return c.Close()
	}
}
