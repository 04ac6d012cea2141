package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"example.com/vendor-marketplace/services/booking/internal/domain"
)

const dateLayout = "2006-01-02"

// === Request DTOs ===

// CreateRequestRequest - тело POST /requests.
type CreateRequestRequest struct {
	VendorID     string            `json:"vendorId" binding:"required"`
	VendorName   string            `json:"vendorName"`
	VendorPhone  string            `json:"vendorPhone"`
	ListingID    string            `json:"listingId" binding:"required"`
	ListingTitle string            `json:"listingTitle"`
	Items        []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	EventDate    string            `json:"eventDate" binding:"required"`
	EventTime    string            `json:"eventTime"`
	Address      string            `json:"address" binding:"required"`
	Instructions string            `json:"instructions"`
}

// LineItemRequest - позиция листинга. Цена строкой или числом.
type LineItemRequest struct {
	Name  string          `json:"name" binding:"required"`
	Price decimal.Decimal `json:"price"`
}

// CreateOrderRequest - тело POST /payments/orders.
type CreateOrderRequest struct {
	RequestID string `json:"requestId" binding:"required"`
}

// VerifyPaymentRequest - данные, которые checkout шлюза возвращает клиенту.
type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

// PayoutRequest - тело POST /admin/payouts/*.
type PayoutRequest struct {
	PaymentID string `json:"paymentId" binding:"required"`
}

// === Response DTOs ===

// PartyResponse - снапшот участника.
type PartyResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ListingResponse - снапшот листинга.
type ListingResponse struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// RequestResponse - заявка в ответе.
type RequestResponse struct {
	ID            string            `json:"id"`
	Requester     PartyResponse     `json:"requester"`
	Vendor        PartyResponse     `json:"vendor"`
	Listing       ListingResponse   `json:"listing"`
	Items         []domain.LineItem `json:"items"`
	TotalPrice    decimal.Decimal   `json:"totalPrice"`
	EventDate     string            `json:"eventDate"`
	EventTime     string            `json:"eventTime,omitempty"`
	Address       string            `json:"address,omitempty"`
	Instructions  string            `json:"instructions,omitempty"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"paymentStatus"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// ListRequestsResponse - страница заявок.
type ListRequestsResponse struct {
	Requests []RequestResponse `json:"requests"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// CreateOrderResponse - всё, что нужно клиенту для открытия checkout.
type CreateOrderResponse struct {
	PaymentID       string          `json:"paymentId"`
	OrderID         string          `json:"orderId"`
	AmountMinor     int64           `json:"amountMinor"`
	Currency        string          `json:"currency"`
	KeyID           string          `json:"keyId"`
	Amount          decimal.Decimal `json:"amount"`
	PlatformFee     decimal.Decimal `json:"platformFee"`
	AdvanceAmount   decimal.Decimal `json:"advanceAmount"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
}

// VerifyPaymentResponse - результат синхронной проверки.
type VerifyPaymentResponse struct {
	Success bool                  `json:"success"`
	Payment domain.CaptureReceipt `json:"payment"`
}

// PaymentResponse - платёж для администратора.
type PaymentResponse struct {
	ID               string          `json:"id"`
	BookingRequestID string          `json:"bookingRequestId"`
	Requester        PartyResponse   `json:"requester"`
	Vendor           PartyResponse   `json:"vendor"`
	Listing          ListingResponse `json:"listing"`
	Total            decimal.Decimal `json:"total"`
	PlatformFee      decimal.Decimal `json:"platformFee"`
	VendorAmount     decimal.Decimal `json:"vendorAmount"`
	AdvanceAmount    decimal.Decimal `json:"advanceAmount"`
	RemainingAmount  decimal.Decimal `json:"remainingAmount"`
	Currency         string          `json:"currency"`
	GatewayOrderID   string          `json:"gatewayOrderId"`
	GatewayPaymentID *string         `json:"gatewayPaymentId,omitempty"`
	CaptureStatus    string          `json:"captureStatus"`
	CaptureSource    *string         `json:"captureSource,omitempty"`
	FailureReason    *string         `json:"failureReason,omitempty"`
	PayoutStatus     string          `json:"payoutStatus"`
	CapturedAt       *time.Time      `json:"capturedAt,omitempty"`
	AdvancePaidAt    *time.Time      `json:"advancePaidAt,omitempty"`
	FullPaidAt       *time.Time      `json:"fullPaidAt,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// BookingResponse - подтвержденное бронирование.
type BookingResponse struct {
	ID               string          `json:"id"`
	PaymentID        string          `json:"paymentId"`
	BookingRequestID string          `json:"bookingRequestId"`
	Requester        PartyResponse   `json:"requester"`
	Vendor           PartyResponse   `json:"vendor"`
	Listing          ListingResponse `json:"listing"`
	EventDate        string          `json:"eventDate"`
	EventTime        string          `json:"eventTime,omitempty"`
	Address          string          `json:"address"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	VendorAmount     decimal.Decimal `json:"vendorAmount"`
	AdvancePaid      bool            `json:"advancePaid"`
	AdvancePaidAt    *time.Time      `json:"advancePaidAt,omitempty"`
	FullPaid         bool            `json:"fullPaid"`
	FullPaidAt       *time.Time      `json:"fullPaidAt,omitempty"`
	Status           string          `json:"status"`
}

// PayoutResponse - результат выплаты.
type PayoutResponse struct {
	Payment PaymentResponse  `json:"payment"`
	Booking *BookingResponse `json:"booking,omitempty"`
}

// PaymentDetailResponse - платёж с заявкой и бронированием.
type PaymentDetailResponse struct {
	Payment PaymentResponse  `json:"payment"`
	Request *RequestResponse `json:"request,omitempty"`
	Booking *BookingResponse `json:"booking,omitempty"`
}

// LedgerResponse - страница admin ledger.
type LedgerResponse struct {
	Entries []domain.LedgerView `json:"entries"`
	Total   int64               `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

// === Маппинг ===

func toParty(p domain.Party) PartyResponse {
	return PartyResponse{ID: p.ID, Name: p.Name, Phone: p.Phone}
}

func toListing(l domain.Listing) ListingResponse {
	return ListingResponse{ID: l.ID, Title: l.Title}
}

func toRequestResponse(r *domain.BookingRequest) RequestResponse {
	items := r.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	return RequestResponse{
		ID:            r.ID,
		Requester:     toParty(r.Requester),
		Vendor:        toParty(r.Vendor),
		Listing:       toListing(r.Listing),
		Items:         items,
		TotalPrice:    r.TotalPrice,
		EventDate:     r.EventDate.Format(dateLayout),
		EventTime:     r.EventTime,
		Address:       r.Address,
		Instructions:  r.Instructions,
		Status:        string(r.Status),
		PaymentStatus: string(r.PaymentStatus),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:               p.ID,
		BookingRequestID: p.BookingRequestID,
		Requester:        toParty(p.Requester),
		Vendor:           toParty(p.Vendor),
		Listing:          toListing(p.Listing),
		Total:            p.Amounts.Total,
		PlatformFee:      p.Amounts.PlatformFee,
		VendorAmount:     p.Amounts.VendorAmount,
		AdvanceAmount:    p.Amounts.AdvanceAmount,
		RemainingAmount:  p.Amounts.RemainingAmount,
		Currency:         p.Amounts.Currency,
		GatewayOrderID:   p.GatewayOrderID,
		GatewayPaymentID: p.GatewayPaymentID,
		CaptureStatus:    string(p.CaptureStatus),
		FailureReason:    p.FailureReason,
		PayoutStatus:     string(p.PayoutStatus),
		CapturedAt:       p.CapturedAt,
		AdvancePaidAt:    p.AdvancePaidAt,
		FullPaidAt:       p.FullPaidAt,
		CreatedAt:        p.CreatedAt,
	}
	if p.CaptureSource != nil {
		s := string(*p.CaptureSource)
		resp.CaptureSource = &s
	}
	return resp
}

func toBookingResponse(b *domain.Booking) *BookingResponse {
	if b == nil {
		return nil
	}
	return &BookingResponse{
		ID:               b.ID,
		PaymentID:        b.PaymentID,
		BookingRequestID: b.BookingRequestID,
		Requester:        toParty(b.Requester),
		Vendor:           toParty(b.Vendor),
		Listing:          toListing(b.Listing),
		EventDate:        b.EventDate.Format(dateLayout),
		EventTime:        b.EventTime,
		Address:          b.Address,
		TotalAmount:      b.TotalAmount,
		VendorAmount:     b.VendorAmount,
		AdvancePaid:      b.PaymentStatus.AdvancePaid,
		AdvancePaidAt:    b.PaymentStatus.AdvancePaidAt,
		FullPaid:         b.PaymentStatus.FullPaid,
		FullPaidAt:       b.PaymentStatus.FullPaidAt,
		Status:           string(b.Status),
	}
}
