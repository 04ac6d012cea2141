// Package handler содержит HTTP обработчики Booking Service.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/vendor-marketplace/pkg/logger"
	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/middleware"
)

// ErrorResponse - стандартный формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var kindStatus = map[domain.Kind]int{
	domain.KindValidation:     http.StatusBadRequest,
	domain.KindNotFound:       http.StatusNotFound,
	domain.KindForbidden:      http.StatusForbidden,
	domain.KindGateway:        http.StatusBadGateway,
	domain.KindInfrastructure: http.StatusServiceUnavailable,
}

// HandleError преобразует доменную ошибку в HTTP ответ по ее виду.
// err не должен быть nil.
func HandleError(c *gin.Context, err error, op string) {
	log := logger.FromContext(c.Request.Context())

	if err == nil {
		log.Error().Str("op", op).Msg("HandleError вызван с nil ошибкой")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	kind := domain.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	resp := ErrorResponse{Error: "internal_error", Message: "Внутренняя ошибка сервера"}
	var de *domain.Error
	if errors.As(err, &de) {
		resp = ErrorResponse{Error: de.Code, Message: de.Message}
	}

	switch kind {
	case domain.KindInfrastructure:
		log.Error().Err(err).Str("op", op).Msg("Сбой инфраструктуры")
		// Детали хранилища клиенту не отдаем.
		resp = ErrorResponse{Error: "service_unavailable", Message: "Сервис временно недоступен"}
	case domain.KindGateway:
		log.Error().Err(err).Str("op", op).Msg("Ошибка платежного шлюза")
	default:
		log.Debug().Err(err).Str("op", op).Str("kind", string(kind)).Msg("Запрос отклонен")
	}

	c.JSON(status, resp)
}

// badRequest отвечает 400 на невалидное тело запроса.
func badRequest(c *gin.Context, err error) {
	logger.Ctx(c.Request.Context()).Debug().Err(err).Msg("Невалидный запрос")
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   domain.ErrInvalidRequest.Code,
		Message: "Невалидные данные запроса",
	})
}

// callerOrAbort достает вызывающего, установленного AuthMiddleware.
func callerOrAbort(c *gin.Context) (domain.Caller, bool) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Требуется авторизация",
		})
		return domain.Caller{}, false
	}
	return caller, true
}
