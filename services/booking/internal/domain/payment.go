package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CaptureStatus - статус списания средств шлюзом.
type CaptureStatus string

const (
	CaptureStatusPending  CaptureStatus = "pending"
	CaptureStatusCaptured CaptureStatus = "captured"
	CaptureStatusFailed   CaptureStatus = "failed"
	CaptureStatusRefunded CaptureStatus = "refunded"
)

// =============================================================================
// Машины состояний платежа
// =============================================================================

// captureTransitions: назад платёж не двигается никогда.
var captureTransitions = map[CaptureStatus][]CaptureStatus{
	CaptureStatusPending:  {CaptureStatusCaptured, CaptureStatusFailed},
	CaptureStatusCaptured: {CaptureStatusRefunded},
}

// CanTransitionTo проверяет переход captureStatus.
func (s CaptureStatus) CanTransitionTo(to CaptureStatus) bool {
	for _, allowed := range captureTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// PayoutStatus - этап выплаты вендору.
type PayoutStatus string

const (
	PayoutStatusNone        PayoutStatus = "none"
	PayoutStatusAdvancePaid PayoutStatus = "advance_paid"
	PayoutStatusFullPaid    PayoutStatus = "full_paid"
)

var payoutTransitions = map[PayoutStatus]PayoutStatus{
	PayoutStatusNone:        PayoutStatusAdvancePaid,
	PayoutStatusAdvancePaid: PayoutStatusFullPaid,
}

// Next возвращает следующий этап выплаты и false для full_paid.
func (s PayoutStatus) Next() (PayoutStatus, bool) {
	next, ok := payoutTransitions[s]
	return next, ok
}

// CaptureSource - чем подтверждено списание.
type CaptureSource string

const (
	CaptureSourceClient  CaptureSource = "client"
	CaptureSourceWebhook CaptureSource = "webhook"
)

// =============================================================================
// Payment
// =============================================================================

// Payment - платёж по одной заявке.
type Payment struct {
	ID               string
	BookingRequestID string
	Requester        Party
	Vendor           Party
	Listing          Listing
	Amounts          Amounts
	GatewayOrderID   string
	GatewayPaymentID *string
	GatewaySignature *string
	CaptureStatus    CaptureStatus
	CaptureSource    *CaptureSource
	FailureReason    *string
	RefundID         *string
	PayoutStatus     PayoutStatus
	CapturedAt       *time.Time
	AdvancePaidAt    *time.Time
	FullPaidAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewPayment создаёт pending платёж для принятой заявки.
func NewPayment(id string, req *BookingRequest, amounts Amounts, gatewayOrderID string, now time.Time) *Payment {
	return &Payment{
		ID:               id,
		BookingRequestID: req.ID,
		Requester:        req.Requester,
		Vendor:           req.Vendor,
		Listing:          req.Listing,
		Amounts:          amounts,
		GatewayOrderID:   gatewayOrderID,
		CaptureStatus:    CaptureStatusPending,
		PayoutStatus:     PayoutStatusNone,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// AdvancePaid возвращает true, если аванс выплачен (в том числе в составе полной выплаты).
func (p *Payment) AdvancePaid() bool {
	return p.PayoutStatus == PayoutStatusAdvancePaid || p.PayoutStatus == PayoutStatusFullPaid
}

// FullPaid возвращает true после полной выплаты.
func (p *Payment) FullPaid() bool {
	return p.PayoutStatus == PayoutStatusFullPaid
}

// CaptureReceipt - результат подтверждения платежа для клиента.
// Строится только из сохраненного платежа, поэтому повторный вызов
// возвращает тот же ответ.
type CaptureReceipt struct {
	PaymentID       string          `json:"paymentId"`
	Amount          decimal.Decimal `json:"amount"`
	AdvancePaid     decimal.Decimal `json:"advancePaid"`
	PlatformFee     decimal.Decimal `json:"platformFee"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	Currency        string          `json:"currency"`
}

// Receipt строит CaptureReceipt.
func (p *Payment) Receipt() CaptureReceipt {
	return CaptureReceipt{
		PaymentID:       p.ID,
		Amount:          p.Amounts.Total,
		AdvancePaid:     p.Amounts.AdvanceAmount,
		PlatformFee:     p.Amounts.PlatformFee,
		RemainingAmount: p.Amounts.RemainingAmount,
		Currency:        p.Amounts.Currency,
	}
}
