package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e entry[T]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryRepository реализует PaymentRepository в памяти процесса.
// Повторяет раскладку Redis: три независимых индекса, у каждого свой срок жизни.
// Используется для локальной разработки и тестов.
type MemoryRepository struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	payments map[string]entry[repository.Payment] // paymentId -> платёж
	orders   map[string]entry[string]             // orderId -> paymentId
	users    map[string]entry[[]string]           // username -> paymentId в порядке создания
}

// Option настраивает MemoryRepository
type Option func(*MemoryRepository)

// WithClock подменяет источник времени (для тестов истечения TTL)
func WithClock(now func() time.Time) Option {
	return func(r *MemoryRepository) {
		r.now = now
	}
}

// NewMemoryRepository создаёт in-memory репозиторий; ttl <= 0 означает repository.DefaultTTL
func NewMemoryRepository(ttl time.Duration, opts ...Option) *MemoryRepository {
	if ttl <= 0 {
		ttl = repository.DefaultTTL
	}
	r := &MemoryRepository{
		ttl:      ttl,
		now:      time.Now,
		payments: make(map[string]entry[repository.Payment]),
		orders:   make(map[string]entry[string]),
		users:    make(map[string]entry[[]string]),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create сохраняет платёж и добавляет его в индексы order и user
func (r *MemoryRepository) Create(ctx context.Context, payment repository.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	expiresAt := r.now().Add(r.ttl)
	r.payments[payment.PaymentID] = entry[repository.Payment]{value: clone(payment), expiresAt: expiresAt}
	r.orders[payment.OrderID] = entry[string]{value: payment.PaymentID, expiresAt: expiresAt}

	ids := r.liveUserIDs(payment.Username)
	if !slices.Contains(ids, payment.PaymentID) {
		ids = append(ids, payment.PaymentID)
	}
	r.users[payment.Username] = entry[[]string]{value: ids, expiresAt: expiresAt}
	return nil
}

// Update перезаписывает платёж и продлевает TTL всех трёх ключей
func (r *MemoryRepository) Update(ctx context.Context, payment repository.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	expiresAt := r.now().Add(r.ttl)
	r.payments[payment.PaymentID] = entry[repository.Payment]{value: clone(payment), expiresAt: expiresAt}

	if e, ok := r.orders[payment.OrderID]; ok && !e.expired(r.now()) {
		e.expiresAt = expiresAt
		r.orders[payment.OrderID] = e
	}
	if e, ok := r.users[payment.Username]; ok && !e.expired(r.now()) {
		e.expiresAt = expiresAt
		r.users[payment.Username] = e
	}
	return nil
}

// GetByID получает платёж по id
func (r *MemoryRepository) GetByID(ctx context.Context, paymentID string) (repository.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.get(paymentID)
}

// GetByOrderID получает платёж через индекс заказа
func (r *MemoryRepository) GetByOrderID(ctx context.Context, orderID string) (repository.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.orders[orderID]
	if !ok || e.expired(r.now()) {
		return repository.Payment{}, repository.ErrNotFound
	}
	return r.get(e.value)
}

// ListByUsername возвращает до limit платежей пользователя, новые первыми.
// Платежи, чей ключ уже истёк, пропускаются.
func (r *MemoryRepository) ListByUsername(ctx context.Context, username string, limit int) ([]repository.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.liveUserIDs(username)
	out := make([]repository.Payment, 0, len(ids))
	for _, id := range ids {
		p, err := r.get(id)
		if err != nil {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) get(paymentID string) (repository.Payment, error) {
	e, ok := r.payments[paymentID]
	if !ok || e.expired(r.now()) {
		return repository.Payment{}, repository.ErrNotFound
	}
	return clone(e.value), nil
}

func (r *MemoryRepository) liveUserIDs(username string) []string {
	e, ok := r.users[username]
	if !ok || e.expired(r.now()) {
		return nil
	}
	return append([]string(nil), e.value...)
}

// clone копирует ссылочные поля, чтобы вызывающий код не менял сохранённую запись
func clone(p repository.Payment) repository.Payment {
	if p.Metadata != nil {
		m := make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			m[k] = v
		}
		p.Metadata = m
	}
	if p.RefundedAmount != nil {
		v := *p.RefundedAmount
		p.RefundedAmount = &v
	}
	p.CompletedAt = cloneTime(p.CompletedAt)
	p.UpdatedAt = cloneTime(p.UpdatedAt)
	p.RefundedAt = cloneTime(p.RefundedAt)
	return p
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
