package jwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	prefixToken = "jwt:revoked:"     // jwt:revoked:{jti}
	prefixUser  = "jwt:invalidated:" // jwt:invalidated:{userID}
)

// Blacklist читает и пишет список отозванных токенов в Redis.
// Identity provider пишет в те же ключи при logout и блокировке пользователя.
type Blacklist struct {
	redis redis.UniversalClient
}

// NewBlacklist создаёт blacklist поверх клиента Redis.
func NewBlacklist(client redis.UniversalClient) *Blacklist {
	return &Blacklist{redis: client}
}

// Add отзывает токен до момента его истечения.
func (b *Blacklist) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := b.redis.Set(ctx, prefixToken+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("ошибка добавления токена в blacklist: %w", err)
	}
	return nil
}

// Check возвращает true, если токен отозван.
func (b *Blacklist) Check(ctx context.Context, jti string) (bool, error) {
	n, err := b.redis.Exists(ctx, prefixToken+jti).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка проверки blacklist: %w", err)
	}
	return n > 0, nil
}

// InvalidateUser отзывает все токены пользователя, выданные до текущего момента.
func (b *Blacklist) InvalidateUser(ctx context.Context, userID string, ttl time.Duration) error {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	if err := b.redis.Set(ctx, prefixUser+userID, ts, ttl).Err(); err != nil {
		return fmt.Errorf("ошибка инвалидации токенов пользователя: %w", err)
	}
	return nil
}

// IsUserInvalidated возвращает true, если токен выдан до массового отзыва.
func (b *Blacklist) IsUserInvalidated(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	val, err := b.redis.Get(ctx, prefixUser+userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка проверки инвалидации пользователя: %w", err)
	}

	invalidatedAt, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, fmt.Errorf("ошибка парсинга timestamp инвалидации: %w", err)
	}
	return issuedAt.Unix() < invalidatedAt, nil
}
