package service

import (
	"context"

	"github.com/google/uuid"

	"example.com/vendor-marketplace/pkg/logger"
	"example.com/vendor-marketplace/pkg/metrics"
	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/repository"
)

// PayoutResult - платёж после выплаты и бронирование.
type PayoutResult struct {
	Payment *domain.Payment
	Booking *domain.Booking
}

// PayoutService - двухэтапная выплата вендору. Только для администратора.
type PayoutService interface {
	// ProcessAdvance выплачивает аванс и создаёт Booking.
	ProcessAdvance(ctx context.Context, caller domain.Caller, paymentID string) (*PayoutResult, error)
	// ProcessFull выплачивает остаток.
	ProcessFull(ctx context.Context, caller domain.Caller, paymentID string) (*PayoutResult, error)
}

type payoutService struct {
	payments repository.PaymentRepository
	requests repository.BookingRequestRepository
	bookings repository.BookingRepository
	now      clock
}

// NewPayoutService создаёт сервис выплат.
func NewPayoutService(payments repository.PaymentRepository, requests repository.BookingRequestRepository,
	bookings repository.BookingRepository) PayoutService {
	return &payoutService{payments: payments, requests: requests, bookings: bookings, now: utcNow}
}

func (s *payoutService) ProcessAdvance(ctx context.Context, caller domain.Caller, paymentID string) (*PayoutResult, error) {
	ctx, span := tracer.Start(ctx, "PayoutService.ProcessAdvance")
	defer span.End()
	log := logger.FromContext(ctx).With().Str("payment_id", paymentID).Str("stage", "advance").Logger()

	if !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := advanceAllowed(p); err != nil {
		return nil, err
	}

	req, err := s.requests.GetByID(ctx, p.BookingRequestID)
	if err != nil {
		return nil, err
	}
	// Заявку могли отменить до списания: такой платёж ждёт ручного возврата.
	if req.Status != domain.RequestStatusAccepted {
		log.Warn().
			Str("request_id", req.ID).
			Str("request_status", string(req.Status)).
			Msg("Аванс по неактивной заявке отклонен")
		return nil, domain.ErrRequestNotActive
	}

	at := s.now()
	booking := domain.NewBooking(uuid.NewString(), p, req, at)

	// Проверки выше только для понятной ошибки. Гарантию дает условный UPDATE.
	ok, err := s.payments.AdvancePayout(ctx, booking, at)
	if err != nil {
		log.Error().Err(err).Msg("Ошибка выплаты аванса")
		return nil, err
	}
	if !ok {
		return nil, s.explainRejected(ctx, paymentID, advanceAllowed)
	}

	metrics.PayoutsTotal.WithLabelValues("advance").Inc()
	log.Info().
		Str("from", string(domain.PayoutStatusNone)).
		Str("to", string(domain.PayoutStatusAdvancePaid)).
		Str("booking_id", booking.ID).
		Str("amount", p.Amounts.AdvanceAmount.String()).
		Msg("Аванс вендору выплачен, бронирование создано")

	updated := *p
	updated.PayoutStatus = domain.PayoutStatusAdvancePaid
	updated.AdvancePaidAt = &at
	updated.UpdatedAt = at
	return &PayoutResult{Payment: &updated, Booking: booking}, nil
}

func (s *payoutService) ProcessFull(ctx context.Context, caller domain.Caller, paymentID string) (*PayoutResult, error) {
	ctx, span := tracer.Start(ctx, "PayoutService.ProcessFull")
	defer span.End()
	log := logger.FromContext(ctx).With().Str("payment_id", paymentID).Str("stage", "full").Logger()

	if !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := fullAllowed(p); err != nil {
		return nil, err
	}

	at := s.now()
	ok, err := s.payments.FullPayout(ctx, paymentID, at)
	if err != nil {
		log.Error().Err(err).Msg("Ошибка полной выплаты")
		return nil, err
	}
	if !ok {
		return nil, s.explainRejected(ctx, paymentID, fullAllowed)
	}

	metrics.PayoutsTotal.WithLabelValues("full").Inc()
	log.Info().
		Str("from", string(domain.PayoutStatusAdvancePaid)).
		Str("to", string(domain.PayoutStatusFullPaid)).
		Str("amount", p.Amounts.RemainingAmount.String()).
		Msg("Остаток вендору выплачен")

	updated := *p
	updated.PayoutStatus = domain.PayoutStatusFullPaid
	updated.FullPaidAt = &at
	updated.UpdatedAt = at

	booking, err := s.bookings.GetByPaymentID(ctx, paymentID)
	if err != nil {
		// Выплата уже зафиксирована, бронирование вернем при следующем чтении.
		log.Warn().Err(err).Msg("Не удалось прочитать бронирование после выплаты")
	}
	return &PayoutResult{Payment: &updated, Booking: booking}, nil
}

// explainRejected перечитывает платёж, когда условный UPDATE проиграл гонку.
func (s *payoutService) explainRejected(ctx context.Context, paymentID string, check func(*domain.Payment) error) error {
	current, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if err := check(current); err != nil {
		return err
	}
	return domain.ErrPayoutAlreadyProcessed
}

func advanceAllowed(p *domain.Payment) error {
	if p.CaptureStatus != domain.CaptureStatusCaptured {
		return domain.ErrPaymentNotCaptured
	}
	if p.PayoutStatus != domain.PayoutStatusNone {
		return domain.ErrPayoutAlreadyProcessed
	}
	return nil
}

func fullAllowed(p *domain.Payment) error {
	if p.CaptureStatus != domain.CaptureStatusCaptured {
		return domain.ErrPaymentNotCaptured
	}
	switch p.PayoutStatus {
	case domain.PayoutStatusNone:
		return domain.ErrAdvanceNotPaid
	case domain.PayoutStatusFullPaid:
		return domain.ErrPayoutAlreadyProcessed
	}
	return nil
}
