package outbox

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrRecordNotFound - запись outbox не найдена.
var ErrRecordNotFound = errors.New("запись outbox не найдена")

// Append пишет запись через переданный handle. Внутри db.Transaction
// передается tx, и запись фиксируется вместе с переходом состояния.
func Append(ctx context.Context, db *gorm.DB, r *Record) error {
	return db.WithContext(ctx).Create(modelFromRecord(r)).Error
}

// Repository - операции Relay над таблицей outbox.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	Pending(ctx context.Context, limit int) ([]*Record, error)
	MarkPublished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error) error
	DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository создаёт GORM репозиторий outbox.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, rec *Record) error {
	return Append(ctx, r.db, rec)
}

// Pending возвращает неопубликованные записи. Записи с большим числом
// попыток идут в конце очереди.
func (r *repository) Pending(ctx context.Context, limit int) ([]*Record, error) {
	var models []Model
	if err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("attempts ASC, created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*Record, len(models))
	for i := range models {
		out[i] = models[i].toRecord()
	}
	return out, nil
}

func (r *repository) MarkPublished(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&Model{}).
		Where("id = ?", id).
		Update("published_at", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *repository) MarkFailed(ctx context.Context, id string, cause error) error {
	res := r.db.WithContext(ctx).Model(&Model{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause.Error(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeletePublishedBefore удаляет опубликованные записи пачками по 1000.
func (r *repository) DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", before).
		Limit(1000).
		Delete(&Model{})
	return res.RowsAffected, res.Error
}
