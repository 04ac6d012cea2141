// Package notification - контракт события уведомления, которое Booking
// Service пишет в outbox, а notifier читает из Kafka.
package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Типы событий.
const (
	EventRequestAccepted = "request.accepted"
	EventRequestDeclined = "request.declined"
	EventPaymentCaptured = "payment.captured"
)

// ErrInvalidMessage - сообщение нельзя доставить ни при каком повторе.
var ErrInvalidMessage = errors.New("некорректное сообщение уведомления")

// Message - одно уведомление получателю.
type Message struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	RecipientID    string    `json:"recipientId"`
	RecipientName  string    `json:"recipientName"`
	RecipientPhone string    `json:"recipientPhone"`
	RequestID      string    `json:"requestId"`
	PaymentID      string    `json:"paymentId,omitempty"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Validate проверяет, что сообщение можно отправить.
func (m *Message) Validate() error {
	switch {
	case m.ID == "":
		return fmt.Errorf("%w: нет id", ErrInvalidMessage)
	case m.RecipientPhone == "":
		return fmt.Errorf("%w: нет телефона получателя", ErrInvalidMessage)
	case m.Text == "":
		return fmt.Errorf("%w: пустой текст", ErrInvalidMessage)
	}
	return nil
}

// Decode разбирает сообщение из JSON и проверяет его.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
