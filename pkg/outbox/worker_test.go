package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/vendor-marketplace/pkg/kafka"
	"example.com/vendor-marketplace/pkg/logger"
)

// =============================================================================
// Моки
// =============================================================================

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, r *Record) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockRepository) Pending(ctx context.Context, limit int) ([]*Record, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Record), args.Error(1)
}

func (m *mockRepository) MarkPublished(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepository) MarkFailed(ctx context.Context, id string, cause error) error {
	return m.Called(ctx, id, cause).Error(0)
}

func (m *mockRepository) DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) SendMessage(ctx context.Context, msg *kafka.Message) error {
	return m.Called(ctx, msg).Error(0)
}

// =============================================================================
// Тесты
// =============================================================================

func TestNewRecord(t *testing.T) {
	ctx := logger.WithTraceID(context.Background(), "trace-1")

	rec, err := NewRecord(ctx, kafka.TopicNotifications, "request.accepted", "req-1", map[string]string{"to": "+91"})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "req-1", rec.Key)
	assert.JSONEq(t, `{"to":"+91"}`, string(rec.Payload))
	assert.Equal(t, "trace-1", rec.Headers[kafka.HeaderTraceID])
	assert.Equal(t, "request.accepted", rec.Headers[kafka.HeaderEventType])
}

func TestRelay_Publish_Success(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	pub := new(mockPublisher)
	relay := NewRelay(repo, pub, DefaultRelayConfig())

	rec := &Record{ID: "o-1", Topic: kafka.TopicNotifications, Key: "req-1", Payload: []byte(`{}`)}

	pub.On("SendMessage", ctx, mock.MatchedBy(func(m *kafka.Message) bool {
		return m.Topic == kafka.TopicNotifications && string(m.Key) == "req-1"
	})).Return(nil)
	repo.On("MarkPublished", ctx, "o-1").Return(nil)

	require.NoError(t, relay.Publish(ctx, rec))
	pub.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestRelay_Publish_SendError(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	pub := new(mockPublisher)
	relay := NewRelay(repo, pub, DefaultRelayConfig())

	sendErr := errors.New("kafka unavailable")
	pub.On("SendMessage", ctx, mock.AnythingOfType("*kafka.Message")).Return(sendErr)
	repo.On("MarkFailed", ctx, "o-1", sendErr).Return(nil)

	err := relay.Publish(ctx, &Record{ID: "o-1", Topic: kafka.TopicNotifications})

	assert.ErrorIs(t, err, sendErr)
	repo.AssertNotCalled(t, "MarkPublished", mock.Anything, mock.Anything)
}

func TestRelay_RelayBatch_DeadLetter(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	pub := new(mockPublisher)
	cfg := DefaultRelayConfig()
	cfg.MaxAttempts = 3
	relay := NewRelay(repo, pub, cfg)

	dead := &Record{ID: "o-dead", EventType: "payment.captured", AggregateID: "pay-1", Attempts: 3}
	repo.On("Pending", ctx, cfg.BatchSize).Return([]*Record{dead}, nil)
	repo.On("MarkPublished", ctx, "o-dead").Return(nil)

	relay.relayBatch(ctx)

	repo.AssertExpectations(t)
	pub.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestRelay_RelayBatch_Batch(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	pub := new(mockPublisher)
	cfg := DefaultRelayConfig()
	relay := NewRelay(repo, pub, cfg)

	records := []*Record{
		{ID: "o-1", Topic: kafka.TopicNotifications, Key: "a"},
		{ID: "o-2", Topic: kafka.TopicNotifications, Key: "b"},
	}
	repo.On("Pending", ctx, cfg.BatchSize).Return(records, nil)
	pub.On("SendMessage", ctx, mock.AnythingOfType("*kafka.Message")).Return(nil).Times(2)
	repo.On("MarkPublished", ctx, "o-1").Return(nil)
	repo.On("MarkPublished", ctx, "o-2").Return(nil)

	relay.relayBatch(ctx)

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestRelay_Run_StopsOnCancel(t *testing.T) {
	repo := new(mockRepository)
	pub := new(mockPublisher)
	cfg := DefaultRelayConfig()
	cfg.PollInterval = 20 * time.Millisecond
	relay := NewRelay(repo, pub, cfg)

	repo.On("Pending", mock.Anything, cfg.BatchSize).Return([]*Record{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Relay не остановился после отмены context")
	}
}
