package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/vendor-marketplace/pkg/logger"
)

// MessageHandler обрабатывает одно сообщение. Контекст уже содержит trace_id из заголовков.
type MessageHandler func(ctx context.Context, msg *Message) error

// DLQPublisher принимает сообщения, которые не удалось обработать.
type DLQPublisher interface {
	SendToDLQ(ctx context.Context, original *Message, cause error) error
}

// Consumer читает топик в составе consumer group.
type Consumer struct {
	reader *kafka.Reader
	dlq    DLQPublisher
	topic  string
}

// NewConsumer создаёт Consumer для topic.
func NewConsumer(cfg Config, topic string) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("не указаны брокеры Kafka")
	}
	if topic == "" {
		return nil, errors.New("не указан топик")
	}
	if cfg.ConsumerGroup == "" {
		return nil, errors.New("не указан group ID")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     250 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", topic).
		Str("group_id", cfg.ConsumerGroup).
		Msg("Создан Kafka Consumer")

	return &Consumer{reader: reader, topic: topic}, nil
}

// SetDLQ включает перекладку необработанных сообщений.
func (c *Consumer) SetDLQ(dlq DLQPublisher) {
	c.dlq = dlq
}

// Consume читает сообщения до отмены ctx. Offset коммитится после обработки,
// поэтому доставка at-least-once; сообщение с ошибкой уходит в DLQ.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	logger.Info().Str("topic", c.topic).Msg("Запуск чтения сообщений из Kafka")

	for {
		km, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Info().Str("topic", c.topic).Msg("Остановка Consumer")
				return nil
			}
			logger.Error().Err(err).Str("topic", c.topic).Msg("Ошибка чтения сообщения из Kafka")
			continue
		}

		msg := fromKafkaMessage(km)
		msgCtx := ContextFromHeaders(ctx, msg.Headers)

		if err := handler(msgCtx, msg); err != nil {
			logger.Ctx(msgCtx).Error().Err(err).
				Str("topic", msg.Topic).
				Str("key", string(msg.Key)).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Ошибка обработки сообщения")

			if c.dlq != nil {
				if dlqErr := c.dlq.SendToDLQ(msgCtx, msg, err); dlqErr != nil {
					// Без DLQ offset не коммитим: сообщение придет повторно.
					logger.Ctx(msgCtx).Error().Err(dlqErr).Msg("Ошибка отправки в DLQ")
					continue
				}
			}
		}

		if err := c.reader.CommitMessages(ctx, km); err != nil {
			logger.Error().Err(err).Str("topic", c.topic).Msg("Ошибка коммита offset")
		}
	}
}

// WithRetry повторяет handler с экспоненциальной задержкой 100ms, 200ms, 400ms...
func WithRetry(handler MessageHandler, maxRetries int) MessageHandler {
	return func(ctx context.Context, msg *Message) error {
		var lastErr error
		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				delay := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
			if lastErr = handler(ctx, msg); lastErr == nil {
				return nil
			}
		}
		return fmt.Errorf("исчерпаны попытки обработки: %w", lastErr)
	}
}

// Close закрывает reader.
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия consumer: %w", err)
	}
	logger.Info().Str("topic", c.topic).Msg("Kafka Consumer закрыт")
	return nil
}
