package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/vendor-marketplace/pkg/logger"
)

func TestHeadersRoundTripThroughContext(t *testing.T) {
	ctx := logger.WithTraceID(context.Background(), "trace-1")
	ctx = logger.WithRequestID(ctx, "req-1")

	headers := HeadersFromContext(ctx)
	assert.Equal(t, "trace-1", headers[HeaderTraceID])
	assert.Equal(t, "req-1", headers[HeaderRequestID])

	restored := ContextFromHeaders(context.Background(), headers)
	assert.Equal(t, "trace-1", logger.TraceIDFromContext(restored))
	assert.Equal(t, "req-1", logger.RequestIDFromContext(restored))
}

func TestMessage_ToKafkaMessage(t *testing.T) {
	m := &Message{Topic: TopicNotifications, Key: []byte("k"), Value: []byte("v"), Headers: map[string]string{HeaderEventType: "request.accepted"}}
	km := m.toKafkaMessage()

	back := fromKafkaMessage(km)
	assert.Equal(t, m.Topic, back.Topic)
	assert.Equal(t, m.Key, back.Key)
	assert.Equal(t, "request.accepted", back.Headers[HeaderEventType])
}

func TestWithRetry(t *testing.T) {
	t.Run("успех со второй попытки", func(t *testing.T) {
		calls := 0
		h := WithRetry(func(context.Context, *Message) error {
			calls++
			if calls < 2 {
				return errors.New("temporary")
			}
			return nil
		}, 3)

		require.NoError(t, h(context.Background(), &Message{}))
		assert.Equal(t, 2, calls)
	})

	t.Run("исчерпание попыток", func(t *testing.T) {
		calls := 0
		h := WithRetry(func(context.Context, *Message) error {
			calls++
			return errors.New("permanent")
		}, 1)

		err := h(context.Background(), &Message{})
		assert.ErrorContains(t, err, "permanent")
		assert.Equal(t, 2, calls)
	})
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(Config{})
	assert.Error(t, err)
}

func TestNewConsumer_Validation(t *testing.T) {
	_, err := NewConsumer(Config{Brokers: []string{"localhost:9092"}}, TopicNotifications)
	assert.Error(t, err, "без group ID")

	_, err = NewConsumer(Config{Brokers: []string{"localhost:9092"}, ConsumerGroup: "g"}, "")
	assert.Error(t, err, "без топика")
}
