package service

import (
	"context"

	"example.com/vendor-marketplace/pkg/logger"
	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/repository"
)

// PaymentDetail - платёж для администратора вместе с заявкой и бронированием.
type PaymentDetail struct {
	Payment *domain.Payment
	Request *domain.BookingRequest
	Booking *domain.Booking // nil до выплаты аванса
}

// LedgerProjector строит admin-представление ledger. Только чтение.
type LedgerProjector interface {
	List(ctx context.Context, caller domain.Caller, limit, offset int) ([]domain.LedgerView, int64, error)
	PaymentDetail(ctx context.Context, caller domain.Caller, paymentID string) (*PaymentDetail, error)
}

type ledgerProjector struct {
	ledger   repository.LedgerRepository
	payments repository.PaymentRepository
	requests repository.BookingRequestRepository
	bookings repository.BookingRepository
}

// NewLedgerProjector создаёт проектор.
func NewLedgerProjector(ledger repository.LedgerRepository, payments repository.PaymentRepository,
	requests repository.BookingRequestRepository, bookings repository.BookingRepository) LedgerProjector {
	return &ledgerProjector{ledger: ledger, payments: payments, requests: requests, bookings: bookings}
}

func (l *ledgerProjector) List(ctx context.Context, caller domain.Caller, limit, offset int) ([]domain.LedgerView, int64, error) {
	if !caller.IsAdmin() {
		return nil, 0, domain.ErrForbidden
	}
	limit, offset = NormalizePage(limit, offset)

	entries, total, err := l.ledger.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	paymentIDs := make([]string, 0, len(entries))
	requestIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		paymentIDs = append(paymentIDs, e.PaymentID)
		requestIDs = append(requestIDs, e.BookingRequestID)
	}

	payments, err := l.payments.ListByIDs(ctx, paymentIDs)
	if err != nil {
		return nil, 0, err
	}
	requests, err := l.requests.ListByIDs(ctx, requestIDs)
	if err != nil {
		return nil, 0, err
	}

	views := make([]domain.LedgerView, 0, len(entries))
	for _, e := range entries {
		v := domain.LedgerView{
			EntryID:          e.ID,
			PaymentID:        e.PaymentID,
			BookingRequestID: e.BookingRequestID,
			Amount:           e.Amount,
			Currency:         e.Currency,
			GatewayPaymentID: e.GatewayPaymentID,
			Source:           e.Source,
			CapturedAt:       e.CreatedAt,
		}

		if p, ok := payments[e.PaymentID]; ok {
			v.RequesterName = p.Requester.Name
			v.VendorName = p.Vendor.Name
			v.ListingTitle = p.Listing.Title
			v.PlatformFee = p.Amounts.PlatformFee
			v.VendorAmount = p.Amounts.VendorAmount
			v.AdvanceAmount = p.Amounts.AdvanceAmount
			v.RemainingAmount = p.Amounts.RemainingAmount
			v.CaptureStatus = p.CaptureStatus
			v.PayoutStatus = p.PayoutStatus
		} else {
			logger.Ctx(ctx).Warn().Str("payment_id", e.PaymentID).Msg("Запись ledger ссылается на отсутствующий платёж")
		}
		if r, ok := requests[e.BookingRequestID]; ok {
			v.RequestStatus = r.Status
		}
		views = append(views, v)
	}
	return views, total, nil
}

func (l *ledgerProjector) PaymentDetail(ctx context.Context, caller domain.Caller, paymentID string) (*PaymentDetail, error) {
	if !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	p, err := l.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	detail := &PaymentDetail{Payment: p}

	req, err := l.requests.GetByID(ctx, p.BookingRequestID)
	if err != nil {
		return nil, err
	}
	detail.Request = req

	if p.AdvancePaid() {
		b, err := l.bookings.GetByPaymentID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		detail.Booking = b
	}
	return detail, nil
}
