package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus - статус заявки.
type RequestStatus string

const (
	RequestStatusPending     RequestStatus = "pending"
	RequestStatusAccepted    RequestStatus = "accepted"
	RequestStatusNotAccepted RequestStatus = "not-accepted"
	RequestStatusCancelled   RequestStatus = "cancelled"
)

// IsTerminal - из not-accepted и cancelled переходов нет.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusNotAccepted || s == RequestStatusCancelled
}

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:  {RequestStatusAccepted, RequestStatusNotAccepted, RequestStatusCancelled},
	RequestStatusAccepted: {RequestStatusCancelled},
}

// CanTransitionTo проверяет переход по машине состояний заявки.
func (s RequestStatus) CanTransitionTo(to RequestStatus) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// PaymentProjection - проекция статуса оплаты на заявке.
// Меняется только при первом подтверждении платежа.
type PaymentProjection string

const (
	PaymentUnpaid PaymentProjection = "unpaid"
	PaymentPaid   PaymentProjection = "paid"
)

// LineItem - позиция, выбранная из листинга; цена фиксируется на момент заявки.
type LineItem struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Party - снапшот участника сделки.
type Party struct {
	ID    string
	Name  string
	Phone string
}

// Listing - снапшот листинга вендора.
type Listing struct {
	ID    string
	Title string
}

// BookingRequest - заявка клиента вендору.
type BookingRequest struct {
	ID            string
	Requester     Party
	Vendor        Party
	Listing       Listing
	Items         []LineItem
	TotalPrice    decimal.Decimal
	EventDate     time.Time
	EventTime     string
	Address       string
	Instructions  string
	Status        RequestStatus
	PaymentStatus PaymentProjection
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewBookingRequest собирает заявку в статусе pending. Итог считается
// как сумма цен позиций.
func NewBookingRequest(id string, requester, vendor Party, listing Listing, items []LineItem,
	eventDate time.Time, eventTime, address, instructions string, now time.Time) (*BookingRequest, error) {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price)
	}

	r := &BookingRequest{
		ID:            id,
		Requester:     requester,
		Vendor:        vendor,
		Listing:       listing,
		Items:         items,
		TotalPrice:    total,
		EventDate:     eventDate,
		EventTime:     strings.TrimSpace(eventTime),
		Address:       strings.TrimSpace(address),
		Instructions:  strings.TrimSpace(instructions),
		Status:        RequestStatusPending,
		PaymentStatus: PaymentUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate проверяет поля заявки.
func (r *BookingRequest) Validate() error {
	switch {
	case r.Requester.ID == "":
		return Validation(ErrInvalidRequest.Code, "не указан заказчик")
	case r.Vendor.ID == "":
		return Validation(ErrInvalidRequest.Code, "не указан вендор")
	case r.Vendor.ID == r.Requester.ID:
		return Validation(ErrInvalidRequest.Code, "нельзя создать заявку самому себе")
	case r.Listing.ID == "":
		return Validation(ErrInvalidRequest.Code, "не указан листинг")
	case len(r.Items) == 0:
		return Validation(ErrInvalidRequest.Code, "не выбрано ни одной позиции")
	case r.EventDate.IsZero():
		return Validation(ErrInvalidRequest.Code, "не указана дата мероприятия")
	case r.Address == "":
		return Validation(ErrInvalidRequest.Code, "не указан адрес")
	}
	for _, it := range r.Items {
		if strings.TrimSpace(it.Name) == "" {
			return Validation(ErrInvalidRequest.Code, "у позиции нет названия")
		}
		if it.Price.IsNegative() {
			return ErrInvalidAmount
		}
	}
	if r.TotalPrice.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// IsParty возвращает true, если вызывающий - заказчик или вендор заявки.
func (r *BookingRequest) IsParty(c Caller) bool {
	return c.ID == r.Requester.ID || c.ID == r.Vendor.ID
}

// ForViewer возвращает копию заявки с учетом правила раскрытия:
// вендор видит адрес только после принятия заявки.
func (r *BookingRequest) ForViewer(c Caller) *BookingRequest {
	out := *r
	out.Items = append([]LineItem(nil), r.Items...)
	if c.ID == r.Vendor.ID && !c.IsAdmin() && r.Status != RequestStatusAccepted {
		out.Address = ""
	}
	return &out
}
