package repository

import (
	"context"

	"gorm.io/gorm"

	"example.com/vendor-marketplace/services/booking/internal/domain"
)

// BookingRepository читает подтвержденные бронирования.
// Создаются они только в PaymentRepository.AdvancePayout.
type BookingRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*domain.Booking, error)
}

type bookingRepository struct {
	db *gorm.DB
}

// NewBookingRepository создаёт GORM хранилище бронирований.
func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	return r.getBy(ctx, "id = ?", id)
}

func (r *bookingRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Booking, error) {
	return r.getBy(ctx, "payment_id = ?", paymentID)
}

func (r *bookingRepository) getBy(ctx context.Context, cond, arg string) (*domain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where(cond, arg).First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, domain.Infrastructure("ошибка чтения бронирования", err)
	}
	return model.toDomain(), nil
}
