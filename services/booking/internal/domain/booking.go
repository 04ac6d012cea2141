package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus - статус исполнения бронирования.
type BookingStatus string

const (
	BookingStatusUpcoming  BookingStatus = "upcoming"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// BookingPaymentStatus повторяет этап выплаты платежа.
type BookingPaymentStatus struct {
	AdvancePaid   bool
	AdvancePaidAt *time.Time
	FullPaid      bool
	FullPaidAt    *time.Time
}

// Booking - подтвержденное бронирование. Создается ровно один раз,
// в момент выплаты аванса.
type Booking struct {
	ID               string
	PaymentID        string
	BookingRequestID string
	Requester        Party
	Vendor           Party
	Listing          Listing
	EventDate        time.Time
	EventTime        string
	Address          string
	TotalAmount      decimal.Decimal
	VendorAmount     decimal.Decimal
	PaymentStatus    BookingPaymentStatus
	Status           BookingStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewBooking собирает бронирование из платежа и заявки на момент выплаты аванса.
func NewBooking(id string, p *Payment, req *BookingRequest, advancePaidAt time.Time) *Booking {
	at := advancePaidAt
	return &Booking{
		ID:               id,
		PaymentID:        p.ID,
		BookingRequestID: p.BookingRequestID,
		Requester:        p.Requester,
		Vendor:           p.Vendor,
		Listing:          p.Listing,
		EventDate:        req.EventDate,
		EventTime:        req.EventTime,
		Address:          req.Address,
		TotalAmount:      p.Amounts.Total,
		VendorAmount:     p.Amounts.VendorAmount,
		PaymentStatus:    BookingPaymentStatus{AdvancePaid: true, AdvancePaidAt: &at},
		Status:           BookingStatusUpcoming,
		CreatedAt:        advancePaidAt,
		UpdatedAt:        advancePaidAt,
	}
}
