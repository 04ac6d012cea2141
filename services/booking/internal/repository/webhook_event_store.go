package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const webhookEventKeyPrefix = "webhook:razorpay:event:"

// WebhookEventStore помнит id уже обработанных событий вебхука.
// Это только быстрый путь: источник истины - условные обновления в MySQL.
type WebhookEventStore interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}

type redisWebhookEventStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewWebhookEventStore создаёт хранилище на Redis. Ключ живет ttl.
func NewWebhookEventStore(client redis.UniversalClient, ttl time.Duration) WebhookEventStore {
	return &redisWebhookEventStore{client: client, ttl: ttl}
}

func (s *redisWebhookEventStore) Seen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	n, err := s.client.Exists(ctx, webhookEventKeyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisWebhookEventStore) Remember(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	return s.client.Set(ctx, webhookEventKeyPrefix+eventID, time.Now().UTC().Unix(), s.ttl).Err()
}
