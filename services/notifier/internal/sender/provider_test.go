package sender

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/vendor-marketplace/pkg/circuitbreaker"
	"example.com/vendor-marketplace/pkg/notification"
)

func testMessage() *notification.Message {
	return &notification.Message{
		ID:             "ntf-1",
		Type:           notification.EventPaymentCaptured,
		RecipientID:    "vend-1",
		RecipientPhone: "+919800000001",
		RequestID:      "req-1",
		Text:           "Оплата получена",
		CreatedAt:      time.Now(),
	}
}

func TestProvider_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "MRKTPL", req.From)
		assert.Equal(t, "+919800000001", req.To)
		assert.Equal(t, "whatsapp", req.Channel)
		assert.Equal(t, "ntf-1", req.Reference)

		_ = json.NewEncoder(w).Encode(sendResponse{MessageID: "wamid-1"})
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL, Token: "secret", SenderID: "MRKTPL"})
	id, err := p.Send(context.Background(), testMessage())

	require.NoError(t, err)
	assert.Equal(t, "wamid-1", id)
	assert.Equal(t, "whatsapp", p.Channel())
}

func TestProvider_Errors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantRejected bool
	}{
		{"невалидный номер", http.StatusBadRequest, true},
		{"rate limit", http.StatusTooManyRequests, false},
		{"сбой провайдера", http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			_, err := NewProvider(Config{URL: srv.URL}).Send(context.Background(), testMessage())
			require.Error(t, err)
			assert.Equal(t, tt.wantRejected, errors.Is(err, ErrRejected))
		})
	}
}

func TestProvider_RejectionsDoNotOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL})
	for i := 0; i < 10; i++ {
		_, err := p.Send(context.Background(), testMessage())
		assert.ErrorIs(t, err, ErrRejected)
	}
	assert.Equal(t, int32(10), calls.Load())
}

func TestProvider_BreakerOpensOnOutage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL})
	var lastErr error
	for i := 0; i < 10; i++ {
		_, lastErr = p.Send(context.Background(), testMessage())
	}
	assert.ErrorIs(t, lastErr, circuitbreaker.ErrOpen)
	assert.Less(t, calls.Load(), int32(10))
}
