package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"example.com/vendor-marketplace/services/booking/internal/domain"
)

// RequestTransition - условный переход статуса заявки.
// Пустые VendorID/RequesterID не участвуют в условии.
type RequestTransition struct {
	RequestID   string
	VendorID    string
	RequesterID string
	From        []domain.RequestStatus
	To          domain.RequestStatus
	// RequireUnpaid запрещает переход, если проекция оплаты уже paid.
	RequireUnpaid bool
	At            time.Time
}

// ListFilter - выборка заявок участника.
type ListFilter struct {
	RequesterID string
	VendorID    string
	Status      domain.RequestStatus
	Limit       int
	Offset      int
}

// BookingRequestRepository - хранилище заявок.
type BookingRequestRepository interface {
	Create(ctx context.Context, r *domain.BookingRequest) error
	GetByID(ctx context.Context, id string) (*domain.BookingRequest, error)
	List(ctx context.Context, f ListFilter) ([]*domain.BookingRequest, error)
	ListByIDs(ctx context.Context, ids []string) (map[string]*domain.BookingRequest, error)

	// Transition выполняет переход одним UPDATE ... WHERE status IN (...).
	// Если ни одна строка не подошла, возвращает ErrRequestNotFound:
	// "нет такой заявки" и "заявка уже в другом статусе" не различаются.
	Transition(ctx context.Context, t RequestTransition) (*domain.BookingRequest, error)
}

type bookingRequestRepository struct {
	db *gorm.DB
}

// NewBookingRequestRepository создаёт GORM хранилище заявок.
func NewBookingRequestRepository(db *gorm.DB) BookingRequestRepository {
	return &bookingRequestRepository{db: db}
}

func (r *bookingRequestRepository) Create(ctx context.Context, req *domain.BookingRequest) error {
	model, err := requestModelFromDomain(req)
	if err != nil {
		return domain.Infrastructure("ошибка сериализации позиций заявки", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domain.Infrastructure("ошибка сохранения заявки", err)
	}
	return nil
}

func (r *bookingRequestRepository) GetByID(ctx context.Context, id string) (*domain.BookingRequest, error) {
	return loadRequest(ctx, r.db, id)
}

func loadRequest(ctx context.Context, db *gorm.DB, id string) (*domain.BookingRequest, error) {
	var model BookingRequestModel
	if err := db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, domain.Infrastructure("ошибка чтения заявки", err)
	}
	req, err := model.toDomain()
	if err != nil {
		return nil, domain.Infrastructure("ошибка чтения позиций заявки", err)
	}
	return req, nil
}

func (r *bookingRequestRepository) List(ctx context.Context, f ListFilter) ([]*domain.BookingRequest, error) {
	q := r.db.WithContext(ctx).Model(&BookingRequestModel{})
	if f.RequesterID != "" {
		q = q.Where("requester_id = ?", f.RequesterID)
	}
	if f.VendorID != "" {
		q = q.Where("vendor_id = ?", f.VendorID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}

	var models []BookingRequestModel
	if err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&models).Error; err != nil {
		return nil, domain.Infrastructure("ошибка чтения списка заявок", err)
	}
	return requestsToDomain(models)
}

func (r *bookingRequestRepository) ListByIDs(ctx context.Context, ids []string) (map[string]*domain.BookingRequest, error) {
	out := make(map[string]*domain.BookingRequest, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var models []BookingRequestModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, domain.Infrastructure("ошибка чтения заявок", err)
	}
	reqs, err := requestsToDomain(models)
	if err != nil {
		return nil, err
	}
	for _, req := range reqs {
		out[req.ID] = req
	}
	return out, nil
}

func (r *bookingRequestRepository) Transition(ctx context.Context, t RequestTransition) (*domain.BookingRequest, error) {
	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}

	q := r.db.WithContext(ctx).Model(&BookingRequestModel{}).
		Where("id = ? AND status IN ?", t.RequestID, from)
	if t.VendorID != "" {
		q = q.Where("vendor_id = ?", t.VendorID)
	}
	if t.RequesterID != "" {
		q = q.Where("requester_id = ?", t.RequesterID)
	}
	if t.RequireUnpaid {
		q = q.Where("payment_status = ?", string(domain.PaymentUnpaid))
	}

	res := q.Updates(map[string]any{
		"status":     string(t.To),
		"updated_at": t.At,
	})
	if res.Error != nil {
		return nil, domain.Infrastructure("ошибка смены статуса заявки", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrRequestNotFound
	}
	return r.GetByID(ctx, t.RequestID)
}

func requestsToDomain(models []BookingRequestModel) ([]*domain.BookingRequest, error) {
	out := make([]*domain.BookingRequest, 0, len(models))
	for i := range models {
		req, err := models[i].toDomain()
		if err != nil {
			return nil, domain.Infrastructure("ошибка чтения позиций заявки", err)
		}
		out = append(out, req)
	}
	return out, nil
}
