// Package outbox реализует transactional outbox: доменное событие пишется
// в таблицу outbox в той же транзакции, что и переход состояния,
// а Relay отдельно доставляет записи в Kafka (at-least-once).
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/vendor-marketplace/pkg/kafka"
)

// Record - одна запись outbox.
type Record struct {
	ID          string
	AggregateID string // ID заявки или платежа
	EventType   string // например "request.accepted", "payment.captured"
	Topic       string
	Key         string // ключ партиционирования
	Payload     []byte
	Headers     map[string]string
	CreatedAt   time.Time
	PublishedAt *time.Time
	Attempts    int
	LastError   *string
}

// NewRecord сериализует payload в JSON и переносит trace заголовки из ctx.
// Ключ партиционирования равен aggregateID, чтобы события одного агрегата шли по порядку.
func NewRecord(ctx context.Context, topic, eventType, aggregateID string, payload any) (*Record, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации события %s: %w", eventType, err)
	}

	headers := kafka.HeadersFromContext(ctx)
	headers[kafka.HeaderEventType] = eventType

	return &Record{
		ID:          uuid.NewString(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Topic:       topic,
		Key:         aggregateID,
		Payload:     data,
		Headers:     headers,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (r *Record) message() *kafka.Message {
	return &kafka.Message{
		Topic:   r.Topic,
		Key:     []byte(r.Key),
		Value:   r.Payload,
		Headers: r.Headers,
	}
}
