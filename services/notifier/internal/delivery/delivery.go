// Package delivery обрабатывает события уведомлений из Kafka.
//
// Доставка at-least-once: Kafka может прислать событие повторно, поэтому
// id отправленных уведомлений запоминаются в Redis.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/vendor-marketplace/pkg/kafka"
	"example.com/vendor-marketplace/pkg/logger"
	"example.com/vendor-marketplace/pkg/metrics"
	"example.com/vendor-marketplace/pkg/notification"
	"example.com/vendor-marketplace/services/notifier/internal/sender"
)

const sentKeyPrefix = "notify:sent:"

// Статусы для метрики notifications_total.
const (
	statusSent      = "sent"
	statusDuplicate = "duplicate"
	statusInvalid   = "invalid"
	statusRejected  = "rejected"
	statusFailed    = "failed"
)

// Sender доставляет сообщение получателю.
type Sender interface {
	Send(ctx context.Context, m *notification.Message) (string, error)
	Channel() string
}

// Handler - обработчик сообщений топика уведомлений.
type Handler struct {
	sender Sender
	redis  redis.UniversalClient
	ttl    time.Duration
}

// NewHandler создаёт обработчик. rdb может быть nil, тогда дубли не отсекаются.
func NewHandler(s Sender, rdb redis.UniversalClient, ttl time.Duration) *Handler {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handler{sender: s, redis: rdb, ttl: ttl}
}

// Handle доставляет одно уведомление. Ошибка возвращается только для
// временных сбоев: их повторит kafka.WithRetry, а затем заберет DLQ.
func (h *Handler) Handle(ctx context.Context, msg *kafka.Message) error {
	log := logger.FromContext(ctx).With().
		Str("topic", msg.Topic).
		Int64("offset", msg.Offset).
		Logger()
	channel := h.sender.Channel()

	m, err := notification.Decode(msg.Value)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(channel, statusInvalid).Inc()
		log.Warn().Err(err).Msg("Некорректное уведомление, пропускаем")
		return nil
	}
	log = log.With().Str("notification_id", m.ID).Str("type", m.Type).Logger()

	if h.alreadySent(ctx, m.ID) {
		metrics.NotificationsTotal.WithLabelValues(channel, statusDuplicate).Inc()
		log.Info().Msg("Уведомление уже отправлено")
		return nil
	}

	providerID, err := h.sender.Send(ctx, m)
	switch {
	case errors.Is(err, sender.ErrRejected):
		metrics.NotificationsTotal.WithLabelValues(channel, statusRejected).Inc()
		log.Warn().Err(err).Msg("Провайдер отклонил уведомление")
		return nil
	case err != nil:
		metrics.NotificationsTotal.WithLabelValues(channel, statusFailed).Inc()
		return err
	}

	metrics.NotificationsTotal.WithLabelValues(channel, statusSent).Inc()
	h.markSent(ctx, m.ID)
	log.Info().Str("provider_message_id", providerID).Msg("Уведомление отправлено")
	return nil
}

func (h *Handler) alreadySent(ctx context.Context, id string) bool {
	if h.redis == nil {
		return false
	}
	n, err := h.redis.Exists(ctx, sentKeyPrefix+id).Result()
	if err != nil {
		// Лучше продублировать сообщение, чем потерять его.
		logger.Ctx(ctx).Warn().Err(err).Msg("Не удалось проверить отправку в Redis")
		return false
	}
	return n > 0
}

func (h *Handler) markSent(ctx context.Context, id string) {
	if h.redis == nil {
		return
	}
	if err := h.redis.Set(ctx, sentKeyPrefix+id, 1, h.ttl).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Не удалось сохранить отметку отправки в Redis")
	}
}
