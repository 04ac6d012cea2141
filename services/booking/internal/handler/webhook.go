package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/vendor-marketplace/pkg/logger"
	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/service"
)

// Заголовки вебхука Razorpay.
const (
	HeaderWebhookSignature = "X-Razorpay-Signature"
	HeaderWebhookEventID   = "X-Razorpay-Event-Id"
)

const maxWebhookBody = 1 << 20

// WebhookHandler принимает вебхуки платежного шлюза.
type WebhookHandler struct {
	reconciler service.Reconciler
}

// NewWebhookHandler создаёт обработчик вебхуков.
func NewWebhookHandler(reconciler service.Reconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// Razorpay обрабатывает событие шлюза.
//
// Подпись считается по сырому телу, поэтому тело читается до разбора.
// 400 - неверная подпись, 503 - сбой хранилища (шлюз повторит доставку),
// во всех остальных случаях 200.
// POST /api/v1/webhooks/razorpay
func (h *WebhookHandler) Razorpay(c *gin.Context) {
	log := logger.FromContext(c.Request.Context())

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось прочитать тело вебхука")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   domain.ErrInvalidWebhook.Code,
			Message: domain.ErrInvalidWebhook.Message,
		})
		return
	}

	err = h.reconciler.HandleWebhook(c.Request.Context(), body,
		c.GetHeader(HeaderWebhookSignature), c.GetHeader(HeaderWebhookEventID))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, domain.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   domain.ErrInvalidSignature.Code,
			Message: domain.ErrInvalidSignature.Message,
		})
	case domain.KindOf(err) == domain.KindInfrastructure, domain.KindOf(err) == domain.KindGateway:
		log.Error().Err(err).Msg("Вебхук не обработан, шлюз повторит доставку")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "service_unavailable",
			Message: "Сервис временно недоступен",
		})
	default:
		// Повтор доставки результат не изменит.
		log.Warn().Err(err).Msg("Вебхук отклонен, подтверждаем получение")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}
