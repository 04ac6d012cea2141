// Package service содержит бизнес-логику Booking Service: заявки,
// заказы на оплату, сверку платежей, выплаты вендорам и admin ledger.
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/gateway"
)

// Константы для валидации пагинации.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var tracer = otel.Tracer("booking-service/service")

// PaymentGateway - то, что сервису нужно от платежного шлюза.
// Реализация: *gateway.Client.
type PaymentGateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*gateway.Order, error)
	GetPaymentDetails(ctx context.Context, paymentID string) (*gateway.PaymentDetails, error)
	VerifySignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(rawBody []byte, signature string) bool
}

// Notifier публикует уведомления. Ошибка не откатывает переход состояния,
// сервис ее только логирует.
type Notifier interface {
	RequestAccepted(ctx context.Context, req *domain.BookingRequest) error
	RequestDeclined(ctx context.Context, req *domain.BookingRequest) error
	PaymentCaptured(ctx context.Context, p *domain.Payment) error
}

type clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

// NormalizePage приводит limit/offset к допустимому диапазону.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
