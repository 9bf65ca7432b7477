package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shestoi/GoBigTech/payment-core/internal/repository"
)

// PaymentRepository реализует repository.PaymentRepository поверх Redis.
//
// Раскладка ключей:
//   - payment:{paymentId}        JSON платежа
//   - payment:order:{orderId}    paymentId
//   - payment:user:{username}    JSON массив paymentId
//
// У каждого ключа свой TTL. Запись в три ключа не транзакционна:
// pipeline не даёт атомарности, а индекс пользователя обновляется через read-modify-write.
// Внутри одного процесса read-your-writes сохраняется, между ключами возможен рассинхрон.
type PaymentRepository struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

// NewPaymentRepository создаёт Redis репозиторий платежей; ttl <= 0 означает repository.DefaultTTL
func NewPaymentRepository(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *PaymentRepository {
	if ttl <= 0 {
		ttl = repository.DefaultTTL
	}
	return &PaymentRepository{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Create сохраняет платёж и индекс заказа одним pipeline, затем дописывает индекс пользователя
func (r *PaymentRepository) Create(ctx context.Context, payment repository.Payment) error {
	data, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("failed to marshal payment: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, repository.PaymentKey(payment.PaymentID), data, r.ttl)
	pipe.Set(ctx, repository.OrderKey(payment.OrderID), payment.PaymentID, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("failed to save payment in redis",
			zap.Error(err),
			zap.String("payment_id", payment.PaymentID),
			zap.String("order_id", payment.OrderID),
		)
		return fmt.Errorf("failed to save payment: %w", err)
	}

	if err := r.appendToUserIndex(ctx, payment.Username, payment.PaymentID); err != nil {
		// платёж уже сохранён, а индекс пользователя нет: история его не покажет
		r.logger.Error("failed to update user payment index",
			zap.Error(err),
			zap.String("payment_id", payment.PaymentID),
			zap.String("username", payment.Username),
		)
		return fmt.Errorf("failed to update user index: %w", err)
	}

	r.logger.Debug("payment saved",
		zap.String("payment_id", payment.PaymentID),
		zap.Duration("ttl", r.ttl),
	)
	return nil
}

func (r *PaymentRepository) appendToUserIndex(ctx context.Context, username, paymentID string) error {
	key := repository.UserKey(username)

	ids, err := r.userIDs(ctx, key)
	if err != nil {
		return err
	}
	if slices.Contains(ids, paymentID) {
		return r.client.Expire(ctx, key, r.ttl).Err()
	}
	ids = append(ids, paymentID)

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal user index: %w", err)
	}
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

func (r *PaymentRepository) userIDs(ctx context.Context, key string) ([]string, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user index: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user index: %w", err)
	}
	return ids, nil
}

// Update перезаписывает платёж и продлевает TTL индексов, чтобы все три ключа истекали вместе
func (r *PaymentRepository) Update(ctx context.Context, payment repository.Payment) error {
	data, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("failed to marshal payment: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, repository.PaymentKey(payment.PaymentID), data, r.ttl)
	pipe.Expire(ctx, repository.OrderKey(payment.OrderID), r.ttl)
	pipe.Expire(ctx, repository.UserKey(payment.Username), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("failed to update payment in redis",
			zap.Error(err),
			zap.String("payment_id", payment.PaymentID),
			zap.String("status", string(payment.Status)),
		)
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return nil
}

// GetByID получает платёж по id
func (r *PaymentRepository) GetByID(ctx context.Context, paymentID string) (repository.Payment, error) {
	raw, err := r.client.Get(ctx, repository.PaymentKey(paymentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return repository.Payment{}, repository.ErrNotFound
		}
		r.logger.Error("failed to get payment from redis",
			zap.Error(err),
			zap.String("payment_id", paymentID),
		)
		return repository.Payment{}, fmt.Errorf("failed to get payment: %w", err)
	}
	return decode(raw)
}

// GetByOrderID получает платёж через индекс payment:order:{orderId}
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (repository.Payment, error) {
	paymentID, err := r.client.Get(ctx, repository.OrderKey(orderID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return repository.Payment{}, repository.ErrNotFound
		}
		r.logger.Error("failed to get order index from redis",
			zap.Error(err),
			zap.String("order_id", orderID),
		)
		return repository.Payment{}, fmt.Errorf("failed to get order index: %w", err)
	}
	return r.GetByID(ctx, paymentID)
}

// ListByUsername читает индекс пользователя и загружает платежи одним MGET.
// Записи, истёкшие раньше индекса, пропускаются.
func (r *PaymentRepository) ListByUsername(ctx context.Context, username string, limit int) ([]repository.Payment, error) {
	ids, err := r.userIDs(ctx, repository.UserKey(username))
	if err != nil {
		r.logger.Error("failed to read user payment index",
			zap.Error(err),
			zap.String("username", username),
		)
		return nil, err
	}
	if len(ids) == 0 {
		return []repository.Payment{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = repository.PaymentKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	out := make([]repository.Payment, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // ключ истёк или удалён
		}
		p, err := decode([]byte(s))
		if err != nil {
			r.logger.Warn("skipping undecodable payment",
				zap.Error(err),
				zap.String("payment_id", ids[i]),
			)
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

func decode(raw []byte) (repository.Payment, error) {
	var p repository.Payment
	if err := json.Unmarshal(raw, &p); err != nil {
		return repository.Payment{}, fmt.Errorf("failed to unmarshal payment: %w", err)
	}
	return p, nil
}
