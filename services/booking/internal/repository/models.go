// Package repository содержит GORM хранилища Booking Service.
// Каждый переход состояния выполняется одним условным UPDATE
// ("обновить, только если текущий статус = X"), а не чтением и записью.
package repository

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"example.com/vendor-marketplace/services/booking/internal/domain"
)

// =============================================================================
// booking_requests
// =============================================================================

// BookingRequestModel - GORM модель таблицы booking_requests.
type BookingRequestModel struct {
	ID             string          `gorm:"column:id;type:varchar(36);primaryKey"`
	RequesterID    string          `gorm:"column:requester_id;type:varchar(64);not null;index"`
	RequesterName  string          `gorm:"column:requester_name;type:varchar(255)"`
	RequesterPhone string          `gorm:"column:requester_phone;type:varchar(32)"`
	VendorID       string          `gorm:"column:vendor_id;type:varchar(64);not null;index"`
	VendorName     string          `gorm:"column:vendor_name;type:varchar(255)"`
	VendorPhone    string          `gorm:"column:vendor_phone;type:varchar(32)"`
	ListingID      string          `gorm:"column:listing_id;type:varchar(64);not null"`
	ListingTitle   string          `gorm:"column:listing_title;type:varchar(255)"`
	Items          []byte          `gorm:"column:items;type:json;not null"`
	TotalPrice     decimal.Decimal `gorm:"column:total_price;type:decimal(14,2);not null"`
	EventDate      time.Time       `gorm:"column:event_date;type:date;not null"`
	EventTime      string          `gorm:"column:event_time;type:varchar(32)"`
	Address        string          `gorm:"column:address;type:text"`
	Instructions   string          `gorm:"column:instructions;type:text"`
	Status         string          `gorm:"column:status;type:varchar(20);not null;index"`
	PaymentStatus  string          `gorm:"column:payment_status;type:varchar(10);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;not null"`
}

// TableName возвращает имя таблицы.
func (BookingRequestModel) TableName() string { return "booking_requests" }

func (m *BookingRequestModel) toDomain() (*domain.BookingRequest, error) {
	var items []domain.LineItem
	if len(m.Items) > 0 {
		if err := json.Unmarshal(m.Items, &items); err != nil {
			return nil, err
		}
	}
	return &domain.BookingRequest{
		ID:            m.ID,
		Requester:     domain.Party{ID: m.RequesterID, Name: m.RequesterName, Phone: m.RequesterPhone},
		Vendor:        domain.Party{ID: m.VendorID, Name: m.VendorName, Phone: m.VendorPhone},
		Listing:       domain.Listing{ID: m.ListingID, Title: m.ListingTitle},
		Items:         items,
		TotalPrice:    m.TotalPrice,
		EventDate:     m.EventDate,
		EventTime:     m.EventTime,
		Address:       m.Address,
		Instructions:  m.Instructions,
		Status:        domain.RequestStatus(m.Status),
		PaymentStatus: domain.PaymentProjection(m.PaymentStatus),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

func requestModelFromDomain(r *domain.BookingRequest) (*BookingRequestModel, error) {
	items, err := json.Marshal(r.Items)
	if err != nil {
		return nil, err
	}
	return &BookingRequestModel{
		ID:             r.ID,
		RequesterID:    r.Requester.ID,
		RequesterName:  r.Requester.Name,
		RequesterPhone: r.Requester.Phone,
		VendorID:       r.Vendor.ID,
		VendorName:     r.Vendor.Name,
		VendorPhone:    r.Vendor.Phone,
		ListingID:      r.Listing.ID,
		ListingTitle:   r.Listing.Title,
		Items:          items,
		TotalPrice:     r.TotalPrice,
		EventDate:      r.EventDate,
		EventTime:      r.EventTime,
		Address:        r.Address,
		Instructions:   r.Instructions,
		Status:         string(r.Status),
		PaymentStatus:  string(r.PaymentStatus),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

// =============================================================================
// payments
// =============================================================================

// PaymentModel - GORM модель таблицы payments.
type PaymentModel struct {
	ID               string          `gorm:"column:id;type:varchar(36);primaryKey"`
	BookingRequestID string          `gorm:"column:booking_request_id;type:varchar(36);not null;uniqueIndex"`
	RequesterID      string          `gorm:"column:requester_id;type:varchar(64);not null;index"`
	RequesterName    string          `gorm:"column:requester_name;type:varchar(255)"`
	RequesterPhone   string          `gorm:"column:requester_phone;type:varchar(32)"`
	VendorID         string          `gorm:"column:vendor_id;type:varchar(64);not null;index"`
	VendorName       string          `gorm:"column:vendor_name;type:varchar(255)"`
	VendorPhone      string          `gorm:"column:vendor_phone;type:varchar(32)"`
	ListingID        string          `gorm:"column:listing_id;type:varchar(64)"`
	ListingTitle     string          `gorm:"column:listing_title;type:varchar(255)"`
	Total            decimal.Decimal `gorm:"column:total;type:decimal(14,2);not null"`
	PlatformFee      decimal.Decimal `gorm:"column:platform_fee;type:decimal(14,2);not null"`
	VendorAmount     decimal.Decimal `gorm:"column:vendor_amount;type:decimal(14,2);not null"`
	AdvanceAmount    decimal.Decimal `gorm:"column:advance_amount;type:decimal(14,2);not null"`
	RemainingAmount  decimal.Decimal `gorm:"column:remaining_amount;type:decimal(14,2);not null"`
	TotalMinor       int64           `gorm:"column:total_minor;not null"`
	Currency         string          `gorm:"column:currency;type:varchar(3);not null"`
	GatewayOrderID   string          `gorm:"column:gateway_order_id;type:varchar(64);not null;uniqueIndex"`
	GatewayPaymentID *string         `gorm:"column:gateway_payment_id;type:varchar(64);uniqueIndex"`
	GatewaySignature *string         `gorm:"column:gateway_signature;type:varchar(128)"`
	CaptureStatus    string          `gorm:"column:capture_status;type:varchar(20);not null;index"`
	CaptureSource    *string         `gorm:"column:capture_source;type:varchar(10)"`
	FailureReason    *string         `gorm:"column:failure_reason;type:text"`
	RefundID         *string         `gorm:"column:refund_id;type:varchar(64)"`
	PayoutStatus     string          `gorm:"column:payout_status;type:varchar(20);not null"`
	CapturedAt       *time.Time      `gorm:"column:captured_at"`
	AdvancePaidAt    *time.Time      `gorm:"column:advance_paid_at"`
	FullPaidAt       *time.Time      `gorm:"column:full_paid_at"`
	CreatedAt        time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;not null"`
}

// TableName возвращает имя таблицы.
func (PaymentModel) TableName() string { return "payments" }

func (m *PaymentModel) toDomain() *domain.Payment {
	p := &domain.Payment{
		ID:               m.ID,
		BookingRequestID: m.BookingRequestID,
		Requester:        domain.Party{ID: m.RequesterID, Name: m.RequesterName, Phone: m.RequesterPhone},
		Vendor:           domain.Party{ID: m.VendorID, Name: m.VendorName, Phone: m.VendorPhone},
		Listing:          domain.Listing{ID: m.ListingID, Title: m.ListingTitle},
		Amounts: domain.Amounts{
			Total:           m.Total,
			PlatformFee:     m.PlatformFee,
			VendorAmount:    m.VendorAmount,
			AdvanceAmount:   m.AdvanceAmount,
			RemainingAmount: m.RemainingAmount,
			TotalMinor:      m.TotalMinor,
			Currency:        m.Currency,
		},
		GatewayOrderID:   m.GatewayOrderID,
		GatewayPaymentID: m.GatewayPaymentID,
		GatewaySignature: m.GatewaySignature,
		CaptureStatus:    domain.CaptureStatus(m.CaptureStatus),
		FailureReason:    m.FailureReason,
		RefundID:         m.RefundID,
		PayoutStatus:     domain.PayoutStatus(m.PayoutStatus),
		CapturedAt:       m.CapturedAt,
		AdvancePaidAt:    m.AdvancePaidAt,
		FullPaidAt:       m.FullPaidAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.CaptureSource != nil {
		src := domain.CaptureSource(*m.CaptureSource)
		p.CaptureSource = &src
	}
	return p
}

func paymentModelFromDomain(p *domain.Payment) *PaymentModel {
	m := &PaymentModel{
		ID:               p.ID,
		BookingRequestID: p.BookingRequestID,
		RequesterID:      p.Requester.ID,
		RequesterName:    p.Requester.Name,
		RequesterPhone:   p.Requester.Phone,
		VendorID:         p.Vendor.ID,
		VendorName:       p.Vendor.Name,
		VendorPhone:      p.Vendor.Phone,
		ListingID:        p.Listing.ID,
		ListingTitle:     p.Listing.Title,
		Total:            p.Amounts.Total,
		PlatformFee:      p.Amounts.PlatformFee,
		VendorAmount:     p.Amounts.VendorAmount,
		AdvanceAmount:    p.Amounts.AdvanceAmount,
		RemainingAmount:  p.Amounts.RemainingAmount,
		TotalMinor:       p.Amounts.TotalMinor,
		Currency:         p.Amounts.Currency,
		GatewayOrderID:   p.GatewayOrderID,
		GatewayPaymentID: p.GatewayPaymentID,
		GatewaySignature: p.GatewaySignature,
		CaptureStatus:    string(p.CaptureStatus),
		FailureReason:    p.FailureReason,
		RefundID:         p.RefundID,
		PayoutStatus:     string(p.PayoutStatus),
		CapturedAt:       p.CapturedAt,
		AdvancePaidAt:    p.AdvancePaidAt,
		FullPaidAt:       p.FullPaidAt,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if p.CaptureSource != nil {
		src := string(*p.CaptureSource)
		m.CaptureSource = &src
	}
	return m
}

// =============================================================================
// bookings
// =============================================================================

// BookingModel - GORM модель таблицы bookings.
type BookingModel struct {
	ID               string          `gorm:"column:id;type:varchar(36);primaryKey"`
	PaymentID        string          `gorm:"column:payment_id;type:varchar(36);not null;uniqueIndex"`
	BookingRequestID string          `gorm:"column:booking_request_id;type:varchar(36);not null;index"`
	RequesterID      string          `gorm:"column:requester_id;type:varchar(64);not null;index"`
	RequesterName    string          `gorm:"column:requester_name;type:varchar(255)"`
	RequesterPhone   string          `gorm:"column:requester_phone;type:varchar(32)"`
	VendorID         string          `gorm:"column:vendor_id;type:varchar(64);not null;index"`
	VendorName       string          `gorm:"column:vendor_name;type:varchar(255)"`
	VendorPhone      string          `gorm:"column:vendor_phone;type:varchar(32)"`
	ListingID        string          `gorm:"column:listing_id;type:varchar(64)"`
	ListingTitle     string          `gorm:"column:listing_title;type:varchar(255)"`
	EventDate        time.Time       `gorm:"column:event_date;type:date"`
	EventTime        string          `gorm:"column:event_time;type:varchar(32)"`
	Address          string          `gorm:"column:address;type:text"`
	TotalAmount      decimal.Decimal `gorm:"column:total_amount;type:decimal(14,2);not null"`
	VendorAmount     decimal.Decimal `gorm:"column:vendor_amount;type:decimal(14,2);not null"`
	AdvancePaid      bool            `gorm:"column:advance_paid;not null"`
	AdvancePaidAt    *time.Time      `gorm:"column:advance_paid_at"`
	FullPaid         bool            `gorm:"column:full_paid;not null"`
	FullPaidAt       *time.Time      `gorm:"column:full_paid_at"`
	Status           string          `gorm:"column:status;type:varchar(20);not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;not null"`
}

// TableName возвращает имя таблицы.
func (BookingModel) TableName() string { return "bookings" }

func (m *BookingModel) toDomain() *domain.Booking {
	return &domain.Booking{
		ID:               m.ID,
		PaymentID:        m.PaymentID,
		BookingRequestID: m.BookingRequestID,
		Requester:        domain.Party{ID: m.RequesterID, Name: m.RequesterName, Phone: m.RequesterPhone},
		Vendor:           domain.Party{ID: m.VendorID, Name: m.VendorName, Phone: m.VendorPhone},
		Listing:          domain.Listing{ID: m.ListingID, Title: m.ListingTitle},
		EventDate:        m.EventDate,
		EventTime:        m.EventTime,
		Address:          m.Address,
		TotalAmount:      m.TotalAmount,
		VendorAmount:     m.VendorAmount,
		PaymentStatus: domain.BookingPaymentStatus{
			AdvancePaid:   m.AdvancePaid,
			AdvancePaidAt: m.AdvancePaidAt,
			FullPaid:      m.FullPaid,
			FullPaidAt:    m.FullPaidAt,
		},
		Status:    domain.BookingStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func bookingModelFromDomain(b *domain.Booking) *BookingModel {
	return &BookingModel{
		ID:               b.ID,
		PaymentID:        b.PaymentID,
		BookingRequestID: b.BookingRequestID,
		RequesterID:      b.Requester.ID,
		RequesterName:    b.Requester.Name,
		RequesterPhone:   b.Requester.Phone,
		VendorID:         b.Vendor.ID,
		VendorName:       b.Vendor.Name,
		VendorPhone:      b.Vendor.Phone,
		ListingID:        b.Listing.ID,
		ListingTitle:     b.Listing.Title,
		EventDate:        b.EventDate,
		EventTime:        b.EventTime,
		Address:          b.Address,
		TotalAmount:      b.TotalAmount,
		VendorAmount:     b.VendorAmount,
		AdvancePaid:      b.PaymentStatus.AdvancePaid,
		AdvancePaidAt:    b.PaymentStatus.AdvancePaidAt,
		FullPaid:         b.PaymentStatus.FullPaid,
		FullPaidAt:       b.PaymentStatus.FullPaidAt,
		Status:           string(b.Status),
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

// =============================================================================
// admin_ledger
// =============================================================================

// LedgerEntryModel - GORM модель таблицы admin_ledger.
// Уникальный индекс по payment_id не дает записать подтверждение дважды.
type LedgerEntryModel struct {
	ID               string          `gorm:"column:id;type:varchar(36);primaryKey"`
	PaymentID        string          `gorm:"column:payment_id;type:varchar(36);not null;uniqueIndex"`
	BookingRequestID string          `gorm:"column:booking_request_id;type:varchar(36);not null"`
	Amount           decimal.Decimal `gorm:"column:amount;type:decimal(14,2);not null"`
	Currency         string          `gorm:"column:currency;type:varchar(3);not null"`
	GatewayPaymentID string          `gorm:"column:gateway_payment_id;type:varchar(64);not null"`
	Source           string          `gorm:"column:source;type:varchar(10);not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;not null;index"`
}

// TableName возвращает имя таблицы.
func (LedgerEntryModel) TableName() string { return "admin_ledger" }

func (m *LedgerEntryModel) toDomain() *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:               m.ID,
		PaymentID:        m.PaymentID,
		BookingRequestID: m.BookingRequestID,
		Amount:           m.Amount,
		Currency:         m.Currency,
		GatewayPaymentID: m.GatewayPaymentID,
		Source:           domain.CaptureSource(m.Source),
		CreatedAt:        m.CreatedAt,
	}
}
