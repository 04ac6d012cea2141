// Package kafka - обёртки над kafka-go для доставки доменных событий
// маркетплейса (уведомления о заявках и платежах).
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/vendor-marketplace/pkg/logger"
)

// Топики.
const (
	// TopicNotifications - события, по которым notifier шлет WhatsApp/SMS.
	TopicNotifications = "booking.notifications"

	// TopicDLQ - сообщения, которые notifier не смог обработать.
	TopicDLQ = "dlq.notifications"
)

// Заголовки сообщений.
const (
	HeaderTraceID   = "trace_id"
	HeaderRequestID = "request_id"
	HeaderEventType = "event_type"
	HeaderTimestamp = "timestamp"
)

// Config - подключение к Kafka.
type Config struct {
	Brokers       []string
	ConsumerGroup string
}

// Message - сообщение Kafka с заголовками в виде map.
type Message struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Headers   map[string]string
	Time      time.Time
}

func fromKafkaMessage(m kafka.Message) *Message {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Key:       m.Key,
		Value:     m.Value,
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Headers:   headers,
		Time:      m.Time,
	}
}

func (m *Message) toKafkaMessage() kafka.Message {
	headers := make([]kafka.Header, 0, len(m.Headers))
	for k, v := range m.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Topic:   m.Topic,
		Headers: headers,
		Time:    m.Time,
	}
}

// HeadersFromContext собирает trace_id и request_id из контекста.
func HeadersFromContext(ctx context.Context) map[string]string {
	h := make(map[string]string, 2)
	if id := logger.TraceIDFromContext(ctx); id != "" {
		h[HeaderTraceID] = id
	}
	if id := logger.RequestIDFromContext(ctx); id != "" {
		h[HeaderRequestID] = id
	}
	return h
}

// ContextFromHeaders переносит trace_id и request_id из сообщения в контекст.
func ContextFromHeaders(ctx context.Context, headers map[string]string) context.Context {
	if id := headers[HeaderTraceID]; id != "" {
		ctx = logger.WithTraceID(ctx, id)
	}
	if id := headers[HeaderRequestID]; id != "" {
		ctx = logger.WithRequestID(ctx, id)
	}
	return ctx
}
