package repository

import (
	"context"

	"gorm.io/gorm"

	"example.com/vendor-marketplace/services/booking/internal/domain"
)

// LedgerRepository читает admin ledger. Записи добавляет только
// PaymentRepository.Capture.
type LedgerRepository interface {
	List(ctx context.Context, limit, offset int) ([]*domain.LedgerEntry, int64, error)
	CountByPaymentID(ctx context.Context, paymentID string) (int64, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository создаёт GORM хранилище ledger.
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// List возвращает записи от новых к старым и общее количество.
func (r *ledgerRepository) List(ctx context.Context, limit, offset int) ([]*domain.LedgerEntry, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&LedgerEntryModel{}).Count(&total).Error; err != nil {
		return nil, 0, domain.Infrastructure("ошибка подсчета ledger", err)
	}

	var models []LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error; err != nil {
		return nil, 0, domain.Infrastructure("ошибка чтения ledger", err)
	}

	out := make([]*domain.LedgerEntry, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, total, nil
}

func (r *ledgerRepository) CountByPaymentID(ctx context.Context, paymentID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&LedgerEntryModel{}).Where("payment_id = ?", paymentID).Count(&n).Error; err != nil {
		return 0, domain.Infrastructure("ошибка подсчета ledger", err)
	}
	return n, nil
}
