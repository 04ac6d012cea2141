package gateway

import (
	"encoding/json"

	"example.com/vendor-marketplace/services/booking/internal/domain"
)

// События вебхука, которые обрабатывает маркетплейс.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventRefundCreated   = "refund.created"
)

// WebhookEvent - нормализованное событие вебхука.
type WebhookEvent struct {
	Event            string
	PaymentID        string
	OrderID          string
	PaymentStatus    string
	RefundID         string
	ErrorDescription string
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Status           string `json:"status"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
		Refund *struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// ParseWebhookEvent разбирает тело вебхука. Вызывать только после
// VerifyWebhookSignature по тем же байтам.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, domain.ErrInvalidWebhook.Wrap(err)
	}
	if env.Event == "" {
		return nil, domain.ErrInvalidWebhook
	}

	ev := &WebhookEvent{Event: env.Event}
	if p := env.Payload.Payment; p != nil {
		ev.PaymentID = p.Entity.ID
		ev.OrderID = p.Entity.OrderID
		ev.PaymentStatus = p.Entity.Status
		ev.ErrorDescription = p.Entity.ErrorDescription
	}
	if r := env.Payload.Refund; r != nil {
		ev.RefundID = r.Entity.ID
		if ev.PaymentID == "" {
			ev.PaymentID = r.Entity.PaymentID
		}
	}
	return ev, nil
}
