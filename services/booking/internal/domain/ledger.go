package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry - неизменяемая запись admin ledger о подтвержденном платеже.
// На один платёж не больше одной записи.
type LedgerEntry struct {
	ID               string
	PaymentID        string
	BookingRequestID string
	Amount           decimal.Decimal
	Currency         string
	GatewayPaymentID string
	Source           CaptureSource
	CreatedAt        time.Time
}

// LedgerView - строка отчета для администратора: запись ledger
// вместе с текущим состоянием платежа и заявки.
type LedgerView struct {
	EntryID          string          `json:"entryId"`
	PaymentID        string          `json:"paymentId"`
	BookingRequestID string          `json:"bookingRequestId"`
	RequesterName    string          `json:"requesterName"`
	VendorName       string          `json:"vendorName"`
	ListingTitle     string          `json:"listingTitle"`
	Amount           decimal.Decimal `json:"amount"`
	PlatformFee      decimal.Decimal `json:"platformFee"`
	VendorAmount     decimal.Decimal `json:"vendorAmount"`
	AdvanceAmount    decimal.Decimal `json:"advanceAmount"`
	RemainingAmount  decimal.Decimal `json:"remainingAmount"`
	Currency         string          `json:"currency"`
	GatewayPaymentID string          `json:"gatewayPaymentId"`
	Source           CaptureSource   `json:"source"`
	CaptureStatus    CaptureStatus   `json:"captureStatus"`
	PayoutStatus     PayoutStatus    `json:"payoutStatus"`
	RequestStatus    RequestStatus   `json:"requestStatus,omitempty"`
	CapturedAt       time.Time       `json:"capturedAt"`
}
