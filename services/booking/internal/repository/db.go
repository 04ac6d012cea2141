package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"example.com/vendor-marketplace/pkg/outbox"
)

// AutoMigrate создаёт и обновляет таблицы Booking Service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&BookingRequestModel{},
		&PaymentModel{},
		&BookingModel{},
		&LedgerEntryModel{},
		&outbox.Model{},
	)
}

// isDuplicateKeyError распознает нарушение уникального индекса MySQL (1062).
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "1062")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
