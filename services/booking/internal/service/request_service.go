package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"example.com/vendor-marketplace/pkg/logger"
	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/repository"
)

// CreateRequestInput - данные новой заявки. Имена и телефоны вендора и
// название листинга приходят снапшотом от клиента.
type CreateRequestInput struct {
	VendorID     string
	VendorName   string
	VendorPhone  string
	ListingID    string
	ListingTitle string
	Items        []domain.LineItem
	EventDate    time.Time
	EventTime    string
	Address      string
	Instructions string
}

// RequestService - жизненный цикл заявки.
type RequestService interface {
	Create(ctx context.Context, caller domain.Caller, in CreateRequestInput) (*domain.BookingRequest, error)
	// Get применяет правило раскрытия адреса.
	Get(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error)
	ListMine(ctx context.Context, caller domain.Caller, status domain.RequestStatus, limit, offset int) ([]*domain.BookingRequest, error)
	Accept(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error)
	Decline(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error)
	Cancel(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error)
}

type requestService struct {
	repo     repository.BookingRequestRepository
	notifier Notifier
	now      clock
}

// NewRequestService создаёт сервис заявок. notifier может быть nil.
func NewRequestService(repo repository.BookingRequestRepository, notifier Notifier) RequestService {
	return &requestService{repo: repo, notifier: notifier, now: utcNow}
}

func (s *requestService) Create(ctx context.Context, caller domain.Caller, in CreateRequestInput) (*domain.BookingRequest, error) {
	log := logger.FromContext(ctx)

	if caller.Role != domain.RoleCustomer {
		return nil, domain.ErrForbidden
	}

	items := append([]domain.LineItem(nil), in.Items...)

	req, err := domain.NewBookingRequest(
		uuid.NewString(),
		domain.Party{ID: caller.ID, Name: caller.Name, Phone: caller.Phone},
		domain.Party{ID: in.VendorID, Name: in.VendorName, Phone: in.VendorPhone},
		domain.Listing{ID: in.ListingID, Title: in.ListingTitle},
		items, in.EventDate, in.EventTime, in.Address, in.Instructions, s.now(),
	)
	if err != nil {
		log.Warn().Err(err).Str("vendor_id", in.VendorID).Msg("Ошибка валидации заявки")
		return nil, err
	}

	if err := s.repo.Create(ctx, req); err != nil {
		log.Error().Err(err).Str("request_id", req.ID).Msg("Ошибка создания заявки")
		return nil, err
	}

	log.Info().
		Str("request_id", req.ID).
		Str("vendor_id", req.Vendor.ID).
		Str("total", req.TotalPrice.String()).
		Msg("Заявка создана")
	return req, nil
}

func (s *requestService) Get(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !req.IsParty(caller) {
		return nil, domain.ErrForbidden
	}
	return req.ForViewer(caller), nil
}

func (s *requestService) ListMine(ctx context.Context, caller domain.Caller, status domain.RequestStatus, limit, offset int) ([]*domain.BookingRequest, error) {
	limit, offset = NormalizePage(limit, offset)
	f := repository.ListFilter{Status: status, Limit: limit, Offset: offset}

	switch caller.Role {
	case domain.RoleCustomer:
		f.RequesterID = caller.ID
	case domain.RoleVendor:
		f.VendorID = caller.ID
	case domain.RoleAdmin:
	default:
		return nil, domain.ErrForbidden
	}

	list, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.BookingRequest, len(list))
	for i, r := range list {
		out[i] = r.ForViewer(caller)
	}
	return out, nil
}

func (s *requestService) Accept(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error) {
	req, err := s.decide(ctx, caller, id, domain.RequestStatusAccepted)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.logNotifyError(ctx, req, s.notifier.RequestAccepted(ctx, req))
	}
	return req.ForViewer(caller), nil
}

func (s *requestService) Decline(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error) {
	req, err := s.decide(ctx, caller, id, domain.RequestStatusNotAccepted)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.logNotifyError(ctx, req, s.notifier.RequestDeclined(ctx, req))
	}
	return req.ForViewer(caller), nil
}

// decide - решение вендора одним условным UPDATE. Заявка чужого вендора
// и уже решенная заявка дают одинаковый NotFound.
func (s *requestService) decide(ctx context.Context, caller domain.Caller, id string, to domain.RequestStatus) (*domain.BookingRequest, error) {
	log := logger.FromContext(ctx)

	if caller.Role != domain.RoleVendor {
		return nil, domain.ErrForbidden
	}

	req, err := s.repo.Transition(ctx, repository.RequestTransition{
		RequestID: id,
		VendorID:  caller.ID,
		From:      []domain.RequestStatus{domain.RequestStatusPending},
		To:        to,
		At:        s.now(),
	})
	if err != nil {
		log.Warn().Err(err).Str("request_id", id).Str("to", string(to)).Msg("Переход заявки не выполнен")
		return nil, err
	}

	log.Info().
		Str("request_id", id).
		Str("from", string(domain.RequestStatusPending)).
		Str("to", string(to)).
		Msg("Статус заявки изменен вендором")
	return req, nil
}

// Cancel отменяет заявку из pending или accepted. Оплаченную заявку
// отменить нельзя, условие проверяется в том же UPDATE.
func (s *requestService) Cancel(ctx context.Context, caller domain.Caller, id string) (*domain.BookingRequest, error) {
	log := logger.FromContext(ctx)

	req, err := s.repo.Transition(ctx, repository.RequestTransition{
		RequestID:     id,
		RequesterID:   caller.ID,
		From:          []domain.RequestStatus{domain.RequestStatusPending, domain.RequestStatusAccepted},
		To:            domain.RequestStatusCancelled,
		RequireUnpaid: true,
		At:            s.now(),
	})
	if err != nil {
		log.Warn().Err(err).Str("request_id", id).Msg("Отмена заявки не выполнена")
		return nil, err
	}

	log.Info().Str("request_id", id).Str("to", string(domain.RequestStatusCancelled)).Msg("Заявка отменена заказчиком")
	return req.ForViewer(caller), nil
}

func (s *requestService) logNotifyError(ctx context.Context, req *domain.BookingRequest, err error) {
	if err == nil {
		return
	}
	logger.Ctx(ctx).Warn().
		Err(err).
		Str("request_id", req.ID).
		Str("status", string(req.Status)).
		Msg("Не удалось отправить уведомление о заявке")
}
