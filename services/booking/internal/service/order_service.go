package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"example.com/vendor-marketplace/pkg/logger"
	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/repository"
)

// OrderResult - всё, что нужно клиенту для открытия checkout.
type OrderResult struct {
	Payment     *domain.Payment
	OrderID     string
	AmountMinor int64
	Currency    string
	KeyID       string
}

// OrderService создаёт заказ на оплату принятой заявки.
type OrderService interface {
	// CreateOrder идемпотентен: для pending платежа возвращает тот же заказ шлюза.
	CreateOrder(ctx context.Context, caller domain.Caller, requestID string) (*OrderResult, error)
}

type orderService struct {
	requests repository.BookingRequestRepository
	payments repository.PaymentRepository
	gateway  PaymentGateway
	policy   domain.FeePolicy
	now      clock
}

// NewOrderService создаёт сервис заказов.
func NewOrderService(requests repository.BookingRequestRepository, payments repository.PaymentRepository,
	gw PaymentGateway, policy domain.FeePolicy) OrderService {
	return &orderService{
		requests: requests,
		payments: payments,
		gateway:  gw,
		policy:   policy,
		now:      utcNow,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, caller domain.Caller, requestID string) (*OrderResult, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()
	log := logger.FromContext(ctx)

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Requester.ID != caller.ID {
		return nil, domain.ErrForbidden
	}
	if req.Status != domain.RequestStatusAccepted {
		return nil, domain.ErrRequestNotAccepted
	}
	if req.PaymentStatus == domain.PaymentPaid {
		return nil, domain.ErrAlreadyPaid
	}

	existing, err := s.payments.GetByBookingRequestID(ctx, requestID)
	switch {
	case err == nil:
		return s.existingOrder(ctx, existing)
	case !errors.Is(err, domain.ErrPaymentNotFound):
		return nil, err
	}

	amounts, err := s.policy.Calculate(req.TotalPrice)
	if err != nil {
		return nil, err
	}
	if amounts.TotalMinor <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	order, err := s.gateway.CreateOrder(ctx, amounts.TotalMinor, amounts.Currency, req.ID, map[string]string{
		"bookingRequestId": req.ID,
		"requesterId":      req.Requester.ID,
		"vendorId":         req.Vendor.ID,
	})
	if err != nil {
		log.Error().Err(err).Str("request_id", req.ID).Msg("Шлюз не создал заказ")
		return nil, err
	}

	payment := domain.NewPayment(uuid.NewString(), req, amounts, order.ID, s.now())
	if err := s.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, domain.ErrDuplicatePayment) {
			// Параллельный запрос успел первым. Наш заказ в шлюзе останется
			// неоплаченным и истечет сам.
			existing, getErr := s.payments.GetByBookingRequestID(ctx, requestID)
			if getErr != nil {
				return nil, getErr
			}
			return s.existingOrder(ctx, existing)
		}
		log.Error().Err(err).Str("request_id", req.ID).Str("order_id", order.ID).Msg("Ошибка сохранения платежа")
		return nil, err
	}

	log.Info().
		Str("payment_id", payment.ID).
		Str("request_id", req.ID).
		Str("order_id", order.ID).
		Int64("amount_minor", amounts.TotalMinor).
		Str("platform_fee", amounts.PlatformFee.String()).
		Str("advance", amounts.AdvanceAmount.String()).
		Msg("Создан заказ на оплату")

	return s.result(payment), nil
}

func (s *orderService) existingOrder(ctx context.Context, p *domain.Payment) (*OrderResult, error) {
	switch p.CaptureStatus {
	case domain.CaptureStatusPending:
		logger.Ctx(ctx).Info().
			Str("payment_id", p.ID).
			Str("order_id", p.GatewayOrderID).
			Msg("Возвращён существующий заказ на оплату")
		return s.result(p), nil
	case domain.CaptureStatusCaptured:
		return nil, domain.ErrAlreadyPaid
	default:
		return nil, domain.ErrPaymentClosed
	}
}

func (s *orderService) result(p *domain.Payment) *OrderResult {
	return &OrderResult{
		Payment:     p,
		OrderID:     p.GatewayOrderID,
		AmountMinor: p.Amounts.TotalMinor,
		Currency:    p.Amounts.Currency,
		KeyID:       s.gateway.KeyID(),
	}
}
