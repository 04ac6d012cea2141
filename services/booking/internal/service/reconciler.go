package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"example.com/vendor-marketplace/pkg/logger"
	"example.com/vendor-marketplace/pkg/metrics"
	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/gateway"
	"example.com/vendor-marketplace/services/booking/internal/repository"
)

// Исходы обработки вебхука для метрики webhook_events_total.
const (
	outcomeProcessed        = "processed"
	outcomeReplayed         = "replayed"
	outcomeIgnored          = "ignored"
	outcomeDuplicate        = "duplicate"
	outcomeInvalidSignature = "invalid_signature"
	outcomeMalformed        = "malformed"
	outcomeError            = "error"
)

// Evidence - доказательство оплаты, которое сверяется с платежом.
// Реализации: ClientEvidence и WebhookEvidence.
type Evidence interface {
	source() domain.CaptureSource
}

// ClientEvidence - данные checkout, присланные клиентом.
type ClientEvidence struct {
	Caller    domain.Caller
	OrderID   string
	PaymentID string
	Signature string
}

func (ClientEvidence) source() domain.CaptureSource { return domain.CaptureSourceClient }

// WebhookEvidence - событие вебхука с уже проверенной подписью.
type WebhookEvidence struct {
	EventID string
	Event   gateway.WebhookEvent
}

func (WebhookEvidence) source() domain.CaptureSource { return domain.CaptureSourceWebhook }

// Outcome - результат сверки.
type Outcome struct {
	// Payment - состояние платежа после сверки. nil, если событие проигнорировано.
	Payment *domain.Payment
	// Transitioned - этот вызов выполнил переход состояния.
	Transitioned bool
	// Ignored - событие не относится ни к одному платежу или не обрабатывается.
	Ignored bool
}

// Reconciler - единая машина состояний списания для синхронной проверки
// клиентом и асинхронного вебхука. Оба входа идемпотентны друг к другу.
type Reconciler interface {
	Reconcile(ctx context.Context, ev Evidence) (*Outcome, error)
	// VerifyPayment - синхронная проверка после checkout.
	VerifyPayment(ctx context.Context, ev ClientEvidence) (*domain.CaptureReceipt, error)
	// HandleWebhook проверяет подпись по сырому телу и обрабатывает событие.
	// Ошибка возвращается только для неверной подписи и сбоев инфраструктуры.
	HandleWebhook(ctx context.Context, rawBody []byte, signature, eventID string) error
}

type reconciler struct {
	payments repository.PaymentRepository
	events   repository.WebhookEventStore
	gateway  PaymentGateway
	notifier Notifier
	now      clock
}

// NewReconciler создаёт координатор сверки. events и notifier могут быть nil.
func NewReconciler(payments repository.PaymentRepository, events repository.WebhookEventStore,
	gw PaymentGateway, notifier Notifier) Reconciler {
	return &reconciler{
		payments: payments,
		events:   events,
		gateway:  gw,
		notifier: notifier,
		now:      utcNow,
	}
}

func (r *reconciler) Reconcile(ctx context.Context, ev Evidence) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "Reconciler.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("capture.source", string(ev.source())))

	var (
		out *Outcome
		err error
	)
	switch e := ev.(type) {
	case ClientEvidence:
		out, err = r.fromClient(ctx, e)
	case WebhookEvidence:
		out, err = r.fromWebhook(ctx, e)
	default:
		err = domain.ErrInvalidRequest
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("capture.transitioned", out.Transitioned), attribute.Bool("capture.ignored", out.Ignored))
	return out, nil
}

func (r *reconciler) VerifyPayment(ctx context.Context, ev ClientEvidence) (*domain.CaptureReceipt, error) {
	out, err := r.Reconcile(ctx, ev)
	if err != nil {
		return nil, err
	}

	switch out.Payment.CaptureStatus {
	case domain.CaptureStatusCaptured:
		receipt := out.Payment.Receipt()
		return &receipt, nil
	case domain.CaptureStatusRefunded:
		return nil, domain.ErrPaymentClosed
	default:
		return nil, domain.ErrVerificationFailed
	}
}

// fromClient: подпись, затем авторитетная проверка в шлюзе, затем условный переход.
func (r *reconciler) fromClient(ctx context.Context, e ClientEvidence) (*Outcome, error) {
	log := logger.FromContext(ctx).With().
		Str("order_id", e.OrderID).
		Str("source", string(domain.CaptureSourceClient)).
		Logger()

	if e.OrderID == "" || e.PaymentID == "" || e.Signature == "" {
		return nil, domain.Validation(domain.ErrInvalidRequest.Code,
			"нужны razorpay_order_id, razorpay_payment_id и razorpay_signature")
	}

	p, err := r.payments.GetByGatewayOrderID(ctx, e.OrderID)
	if err != nil {
		return nil, err
	}
	if p.Requester.ID != e.Caller.ID && !e.Caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	log = log.With().Str("payment_id", p.ID).Logger()

	if !r.gateway.VerifySignature(e.OrderID, e.PaymentID, e.Signature) {
		log.Warn().Str("gateway_payment_id", e.PaymentID).Msg("Подпись платежа не совпала")

		failed, err := r.payments.MarkFailed(ctx, p.ID, "signature mismatch", r.now())
		if err != nil {
			return nil, err
		}
		if failed {
			log.Info().
				Str("from", string(domain.CaptureStatusPending)).
				Str("to", string(domain.CaptureStatusFailed)).
				Msg("Платёж переведен в failed")
		}
		return nil, domain.ErrVerificationFailed
	}

	switch p.CaptureStatus {
	case domain.CaptureStatusCaptured, domain.CaptureStatusRefunded:
		log.Info().Str("status", string(p.CaptureStatus)).Msg("Повторная проверка уже подтвержденного платежа")
		return &Outcome{Payment: p}, nil
	case domain.CaptureStatusFailed:
		return nil, domain.ErrVerificationFailed
	}

	details, err := r.gateway.GetPaymentDetails(ctx, e.PaymentID)
	if err != nil {
		log.Error().Err(err).Msg("Не удалось получить статус платежа из шлюза")
		return nil, err
	}
	if details.OrderID != "" && details.OrderID != p.GatewayOrderID {
		// Подпись верна, но шлюз относит платёж к другому заказу. Состояние не трогаем.
		log.Warn().Str("gateway_order_id", details.OrderID).Msg("Платёж шлюза относится к другому заказу")
		return nil, domain.ErrVerificationFailed
	}
	if details.Status != gateway.PaymentStatusCaptured {
		log.Info().Str("gateway_status", details.Status).Msg("Шлюз еще не подтвердил списание")
		return nil, domain.ErrNotCapturedYet
	}

	signature := e.Signature
	return r.capture(ctx, log, p, e.PaymentID, &signature, domain.CaptureSourceClient)
}

func (r *reconciler) fromWebhook(ctx context.Context, e WebhookEvidence) (*Outcome, error) {
	ev := e.Event
	log := logger.FromContext(ctx).With().
		Str("event", ev.Event).
		Str("event_id", e.EventID).
		Str("order_id", ev.OrderID).
		Str("gateway_payment_id", ev.PaymentID).
		Str("source", string(domain.CaptureSourceWebhook)).
		Logger()

	switch ev.Event {
	case gateway.EventPaymentCaptured, gateway.EventPaymentFailed, gateway.EventRefundCreated:
	default:
		log.Debug().Msg("Событие вебхука не обрабатывается")
		return &Outcome{Ignored: true}, nil
	}

	p, err := r.findPayment(ctx, ev.OrderID, ev.PaymentID)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		log.Warn().Msg("Вебхук для неизвестного платежа, игнорируем")
		return &Outcome{Ignored: true}, nil
	}
	if err != nil {
		return nil, err
	}
	log = log.With().Str("payment_id", p.ID).Logger()

	switch ev.Event {
	case gateway.EventPaymentCaptured:
		switch p.CaptureStatus {
		case domain.CaptureStatusCaptured, domain.CaptureStatusRefunded:
			log.Debug().Str("status", string(p.CaptureStatus)).Msg("Платёж уже подтвержден")
			return &Outcome{Payment: p}, nil
		case domain.CaptureStatusFailed:
			// Назад из failed не переходим, деньги списаны: нужна ручная сверка.
			log.Error().Msg("Шлюз подтвердил списание по платежу в статусе failed")
			return &Outcome{Payment: p}, nil
		}
		if ev.PaymentID == "" {
			log.Warn().Msg("В событии payment.captured нет id платежа, игнорируем")
			return &Outcome{Ignored: true}, nil
		}
		return r.capture(ctx, log, p, ev.PaymentID, nil, domain.CaptureSourceWebhook)

	case gateway.EventPaymentFailed:
		reason := ev.ErrorDescription
		if reason == "" {
			reason = gateway.EventPaymentFailed
		}
		return r.transition(ctx, log, p, domain.CaptureStatusFailed, func() (bool, error) {
			return r.payments.MarkFailed(ctx, p.ID, reason, r.now())
		})

	default: // refund.created
		return r.transition(ctx, log, p, domain.CaptureStatusRefunded, func() (bool, error) {
			return r.payments.MarkRefunded(ctx, p.ID, ev.RefundID, r.now())
		})
	}
}

// findPayment ищет по id заказа, затем по id платежа шлюза.
func (r *reconciler) findPayment(ctx context.Context, orderID, gatewayPaymentID string) (*domain.Payment, error) {
	if orderID != "" {
		p, err := r.payments.GetByGatewayOrderID(ctx, orderID)
		if !errors.Is(err, domain.ErrPaymentNotFound) {
			return p, err
		}
	}
	if gatewayPaymentID != "" {
		return r.payments.GetByGatewayPaymentID(ctx, gatewayPaymentID)
	}
	return nil, domain.ErrPaymentNotFound
}

// capture выполняет pending -> captured. Побочные эффекты (метрика,
// уведомление) только в ветке, где переход выполнил этот вызов.
func (r *reconciler) capture(ctx context.Context, log zerolog.Logger, p *domain.Payment,
	gatewayPaymentID string, signature *string, source domain.CaptureSource) (*Outcome, error) {
	at := r.now()

	res, err := r.payments.Capture(ctx, repository.CaptureUpdate{
		PaymentID:        p.ID,
		BookingRequestID: p.BookingRequestID,
		GatewayPaymentID: gatewayPaymentID,
		Signature:        signature,
		Source:           source,
		Amount:           p.Amounts.Total,
		Currency:         p.Amounts.Currency,
		At:               at,
	})
	if err != nil {
		log.Error().Err(err).Msg("Ошибка подтверждения платежа")
		return nil, err
	}

	if !res.Captured {
		// Другой вход успел раньше, либо платёж ушел в failed.
		current, err := r.payments.GetByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		log.Info().Str("status", string(current.CaptureStatus)).Msg("Платёж уже не pending, переход не нужен")
		return &Outcome{Payment: current}, nil
	}

	metrics.CapturesTotal.WithLabelValues(string(source)).Inc()
	log.Info().
		Str("from", string(domain.CaptureStatusPending)).
		Str("to", string(domain.CaptureStatusCaptured)).
		Str("ledger_entry_id", res.LedgerEntryID).
		Msg("Платёж подтвержден")

	if !res.RequestMarkedPaid {
		log.Warn().Str("request_id", p.BookingRequestID).Msg("Заявка уже не accepted, оплата требует возврата вручную")
	}

	captured := *p
	captured.CaptureStatus = domain.CaptureStatusCaptured
	captured.GatewayPaymentID = &gatewayPaymentID
	captured.GatewaySignature = signature
	captured.CaptureSource = &source
	captured.CapturedAt = &at
	captured.UpdatedAt = at

	if r.notifier != nil {
		if err := r.notifier.PaymentCaptured(ctx, &captured); err != nil {
			log.Warn().Err(err).Msg("Не удалось отправить уведомление об оплате")
		}
	}

	return &Outcome{Payment: &captured, Transitioned: true}, nil
}

func (r *reconciler) transition(ctx context.Context, log zerolog.Logger, p *domain.Payment,
	to domain.CaptureStatus, apply func() (bool, error)) (*Outcome, error) {
	from := p.CaptureStatus

	done, err := apply()
	if err != nil {
		return nil, err
	}
	if !done {
		log.Info().Str("status", string(from)).Str("to", string(to)).Msg("Условный переход платежа не выполнен")
		current, err := r.payments.GetByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return &Outcome{Payment: current}, nil
	}

	log.Info().Str("from", string(from)).Str("to", string(to)).Msg("Статус платежа изменен")
	updated := *p
	updated.CaptureStatus = to
	return &Outcome{Payment: &updated, Transitioned: true}, nil
}

func (r *reconciler) HandleWebhook(ctx context.Context, rawBody []byte, signature, eventID string) error {
	log := logger.FromContext(ctx).With().Str("event_id", eventID).Logger()

	if !r.gateway.VerifyWebhookSignature(rawBody, signature) {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", outcomeInvalidSignature).Inc()
		log.Warn().Int("body_size", len(rawBody)).Msg("Неверная подпись вебхука")
		return domain.ErrInvalidSignature
	}

	if r.events != nil && eventID != "" {
		seen, err := r.events.Seen(ctx, eventID)
		if err != nil {
			log.Warn().Err(err).Msg("Не удалось проверить повтор события в Redis")
		} else if seen {
			metrics.WebhookEventsTotal.WithLabelValues("unknown", outcomeDuplicate).Inc()
			log.Info().Msg("Повторная доставка события, пропускаем")
			return nil
		}
	}

	ev, err := gateway.ParseWebhookEvent(rawBody)
	if err != nil {
		// Подпись верна, значит повтор доставки ничего не исправит.
		metrics.WebhookEventsTotal.WithLabelValues("unknown", outcomeMalformed).Inc()
		log.Warn().Err(err).Msg("Не удалось разобрать тело вебхука")
		return nil
	}

	out, err := r.Reconcile(ctx, WebhookEvidence{EventID: eventID, Event: *ev})
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(ev.Event, outcomeError).Inc()
		log.Error().Err(err).Str("event", ev.Event).Msg("Ошибка обработки вебхука")
		return err
	}

	outcome := outcomeReplayed
	switch {
	case out.Ignored:
		outcome = outcomeIgnored
	case out.Transitioned:
		outcome = outcomeProcessed
	}
	metrics.WebhookEventsTotal.WithLabelValues(ev.Event, outcome).Inc()

	if r.events != nil && eventID != "" {
		if err := r.events.Remember(ctx, eventID); err != nil {
			log.Warn().Err(err).Msg("Не удалось сохранить id события в Redis")
		}
	}
	return nil
}
