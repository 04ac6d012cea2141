package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"example.com/vendor-marketplace/services/booking/internal/domain"
)

// CaptureUpdate - данные для перехода pending -> captured.
type CaptureUpdate struct {
	PaymentID        string
	BookingRequestID string
	GatewayPaymentID string
	Signature        *string
	Source           domain.CaptureSource
	Amount           decimal.Decimal
	Currency         string
	At               time.Time
}

// CaptureResult - что сделал Capture.
type CaptureResult struct {
	// Captured - этот вызов выполнил переход. false означает, что платёж
	// уже не pending (повтор или гонка проиграна).
	Captured bool
	// RequestMarkedPaid - проекция заявки переключена в paid. false, если
	// заявку успели отменить до списания.
	RequestMarkedPaid bool
	LedgerEntryID     string
}

// PaymentRepository - хранилище платежей. Все мутации условны по текущему
// состоянию и возвращают false, если состояние уже другое.
type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	GetByGatewayOrderID(ctx context.Context, orderID string) (*domain.Payment, error)
	GetByGatewayPaymentID(ctx context.Context, paymentID string) (*domain.Payment, error)
	GetByBookingRequestID(ctx context.Context, requestID string) (*domain.Payment, error)
	ListByIDs(ctx context.Context, ids []string) (map[string]*domain.Payment, error)

	// Capture в одной транзакции: pending -> captured, запись admin ledger
	// и проекция заявки в paid. Ledger пишется только если переход выполнен.
	Capture(ctx context.Context, u CaptureUpdate) (CaptureResult, error)
	// MarkFailed: pending -> failed.
	MarkFailed(ctx context.Context, id, reason string, at time.Time) (bool, error)
	// MarkRefunded: captured -> refunded.
	MarkRefunded(ctx context.Context, id, refundID string, at time.Time) (bool, error)

	// AdvancePayout в одной транзакции: payout none -> advance_paid при
	// captured и создание Booking.
	AdvancePayout(ctx context.Context, b *domain.Booking, at time.Time) (bool, error)
	// FullPayout в одной транзакции: advance_paid -> full_paid и отметка в Booking.
	FullPayout(ctx context.Context, id string, at time.Time) (bool, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository создаёт GORM хранилище платежей.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	if err := r.db.WithContext(ctx).Create(paymentModelFromDomain(p)).Error; err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicatePayment
		}
		return domain.Infrastructure("ошибка сохранения платежа", err)
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	return r.getBy(ctx, "id = ?", id)
}

func (r *paymentRepository) GetByGatewayOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	return r.getBy(ctx, "gateway_order_id = ?", orderID)
}

func (r *paymentRepository) GetByGatewayPaymentID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return r.getBy(ctx, "gateway_payment_id = ?", paymentID)
}

func (r *paymentRepository) GetByBookingRequestID(ctx context.Context, requestID string) (*domain.Payment, error) {
	return r.getBy(ctx, "booking_request_id = ?", requestID)
}

func (r *paymentRepository) getBy(ctx context.Context, cond string, arg string) (*domain.Payment, error) {
	var model PaymentModel
	if err := r.db.WithContext(ctx).Where(cond, arg).First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, domain.Infrastructure("ошибка чтения платежа", err)
	}
	return model.toDomain(), nil
}

func (r *paymentRepository) ListByIDs(ctx context.Context, ids []string) (map[string]*domain.Payment, error) {
	out := make(map[string]*domain.Payment, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var models []PaymentModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, domain.Infrastructure("ошибка чтения платежей", err)
	}
	for i := range models {
		out[models[i].ID] = models[i].toDomain()
	}
	return out, nil
}

// =============================================================================
// Capture state machine
// =============================================================================

// errNotTransitioned откатывает транзакцию, когда условный UPDATE не затронул строк.
var errNotTransitioned = errors.New("переход не выполнен")

func (r *paymentRepository) Capture(ctx context.Context, u CaptureUpdate) (CaptureResult, error) {
	var result CaptureResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&PaymentModel{}).
			Where("id = ? AND capture_status = ?", u.PaymentID, string(domain.CaptureStatusPending)).
			Updates(map[string]any{
				"capture_status":     string(domain.CaptureStatusCaptured),
				"gateway_payment_id": u.GatewayPaymentID,
				"gateway_signature":  u.Signature,
				"capture_source":     string(u.Source),
				"captured_at":        u.At,
				"updated_at":         u.At,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotTransitioned
		}

		entry := &LedgerEntryModel{
			ID:               uuid.NewString(),
			PaymentID:        u.PaymentID,
			BookingRequestID: u.BookingRequestID,
			Amount:           u.Amount,
			Currency:         u.Currency,
			GatewayPaymentID: u.GatewayPaymentID,
			Source:           string(u.Source),
			CreatedAt:        u.At,
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		// Терминальную заявку не трогаем.
		proj := tx.Model(&BookingRequestModel{}).
			Where("id = ? AND status = ? AND payment_status = ?",
				u.BookingRequestID, string(domain.RequestStatusAccepted), string(domain.PaymentUnpaid)).
			Updates(map[string]any{
				"payment_status": string(domain.PaymentPaid),
				"updated_at":     u.At,
			})
		if proj.Error != nil {
			return proj.Error
		}

		result = CaptureResult{Captured: true, RequestMarkedPaid: proj.RowsAffected == 1, LedgerEntryID: entry.ID}
		return nil
	})

	switch {
	case errors.Is(err, errNotTransitioned):
		return CaptureResult{}, nil
	case err != nil:
		return CaptureResult{}, domain.Infrastructure("ошибка подтверждения платежа", err)
	}
	return result, nil
}

func (r *paymentRepository) MarkFailed(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	return r.conditionalUpdate(ctx, id, "capture_status = ?", []any{string(domain.CaptureStatusPending)}, map[string]any{
		"capture_status": string(domain.CaptureStatusFailed),
		"failure_reason": reason,
		"updated_at":     at,
	})
}

func (r *paymentRepository) MarkRefunded(ctx context.Context, id, refundID string, at time.Time) (bool, error) {
	return r.conditionalUpdate(ctx, id, "capture_status = ?", []any{string(domain.CaptureStatusCaptured)}, map[string]any{
		"capture_status": string(domain.CaptureStatusRefunded),
		"refund_id":      refundID,
		"updated_at":     at,
	})
}

func (r *paymentRepository) conditionalUpdate(ctx context.Context, id, cond string, args []any, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Where("id = ?", id).
		Where(cond, args...).
		Updates(fields)
	if res.Error != nil {
		return false, domain.Infrastructure("ошибка смены статуса платежа", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// =============================================================================
// Payout state machine
// =============================================================================

func (r *paymentRepository) AdvancePayout(ctx context.Context, b *domain.Booking, at time.Time) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&PaymentModel{}).
			Where("id = ? AND capture_status = ? AND payout_status = ?",
				b.PaymentID, string(domain.CaptureStatusCaptured), string(domain.PayoutStatusNone)).
			Updates(map[string]any{
				"payout_status":   string(domain.PayoutStatusAdvancePaid),
				"advance_paid_at": at,
				"updated_at":      at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotTransitioned
		}
		return tx.Create(bookingModelFromDomain(b)).Error
	})

	switch {
	case errors.Is(err, errNotTransitioned):
		return false, nil
	case err != nil:
		return false, domain.Infrastructure("ошибка выплаты аванса", err)
	}
	return true, nil
}

func (r *paymentRepository) FullPayout(ctx context.Context, id string, at time.Time) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&PaymentModel{}).
			Where("id = ? AND capture_status = ? AND payout_status = ?",
				id, string(domain.CaptureStatusCaptured), string(domain.PayoutStatusAdvancePaid)).
			Updates(map[string]any{
				"payout_status": string(domain.PayoutStatusFullPaid),
				"full_paid_at":  at,
				"updated_at":    at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotTransitioned
		}

		bk := tx.Model(&BookingModel{}).
			Where("payment_id = ?", id).
			Updates(map[string]any{
				"full_paid":    true,
				"full_paid_at": at,
				"updated_at":   at,
			})
		if bk.Error != nil {
			return bk.Error
		}
		if bk.RowsAffected == 0 {
			// advance_paid без Booking - нарушение инварианта, не фиксируем выплату.
			return domain.ErrBookingNotFound
		}
		return nil
	})

	switch {
	case errors.Is(err, errNotTransitioned):
		return false, nil
	case errors.Is(err, domain.ErrBookingNotFound):
		return false, domain.Infrastructure("у выплаченного аванса нет бронирования", err)
	case err != nil:
		return false, domain.Infrastructure("ошибка полной выплаты", err)
	}
	return true, nil
}
