// Package notify публикует уведомления участникам заявки. Публикация
// идет через outbox и не входит в транзакцию перехода состояния:
// ошибка здесь только логируется вызывающим.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/vendor-marketplace/pkg/kafka"
	"example.com/vendor-marketplace/pkg/logger"
	"example.com/vendor-marketplace/pkg/notification"
	"example.com/vendor-marketplace/pkg/outbox"
	"example.com/vendor-marketplace/services/booking/internal/domain"
)

// OutboxNotifier пишет notification.Message в outbox для топика уведомлений.
type OutboxNotifier struct {
	store outbox.Repository
	now   func() time.Time
}

// NewOutboxNotifier создаёт notifier поверх хранилища outbox.
func NewOutboxNotifier(store outbox.Repository) *OutboxNotifier {
	return &OutboxNotifier{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// RequestAccepted уведомляет заказчика о принятии заявки.
func (n *OutboxNotifier) RequestAccepted(ctx context.Context, req *domain.BookingRequest) error {
	text := fmt.Sprintf("%s accepted your booking request for %q on %s. You can now complete the payment.",
		req.Vendor.Name, req.Listing.Title, req.EventDate.Format("02 Jan 2006"))
	return n.publish(ctx, notification.EventRequestAccepted, req.ID, "", req.Requester, text)
}

// RequestDeclined уведомляет заказчика об отказе.
func (n *OutboxNotifier) RequestDeclined(ctx context.Context, req *domain.BookingRequest) error {
	text := fmt.Sprintf("%s declined your booking request for %q.", req.Vendor.Name, req.Listing.Title)
	return n.publish(ctx, notification.EventRequestDeclined, req.ID, "", req.Requester, text)
}

// PaymentCaptured уведомляет вендора об оплате заявки.
func (n *OutboxNotifier) PaymentCaptured(ctx context.Context, p *domain.Payment) error {
	text := fmt.Sprintf("%s paid %s %s for %q. The booking will be confirmed after the advance payout.",
		p.Requester.Name, p.Amounts.Total.StringFixed(2), p.Amounts.Currency, p.Listing.Title)
	return n.publish(ctx, notification.EventPaymentCaptured, p.BookingRequestID, p.ID, p.Vendor, text)
}

func (n *OutboxNotifier) publish(ctx context.Context, eventType, requestID, paymentID string, to domain.Party, text string) error {
	log := logger.FromContext(ctx)

	if to.Phone == "" {
		log.Debug().
			Str("event_type", eventType).
			Str("recipient_id", to.ID).
			Msg("У получателя нет телефона, уведомление пропущено")
		return nil
	}

	msg := notification.Message{
		ID:             uuid.NewString(),
		Type:           eventType,
		RecipientID:    to.ID,
		RecipientName:  to.Name,
		RecipientPhone: to.Phone,
		RequestID:      requestID,
		PaymentID:      paymentID,
		Text:           text,
		CreatedAt:      n.now(),
	}

	rec, err := outbox.NewRecord(ctx, kafka.TopicNotifications, eventType, requestID, msg)
	if err != nil {
		return err
	}
	if err := n.store.Create(ctx, rec); err != nil {
		return fmt.Errorf("ошибка записи уведомления в outbox: %w", err)
	}

	log.Debug().
		Str("event_type", eventType).
		Str("request_id", requestID).
		Str("outbox_id", rec.ID).
		Msg("Уведомление поставлено в outbox")
	return nil
}
