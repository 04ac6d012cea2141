// Package middleware содержит HTTP middleware Booking Service.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"example.com/vendor-marketplace/pkg/jwt"
	"example.com/vendor-marketplace/pkg/logger"
	"example.com/vendor-marketplace/services/booking/internal/domain"
)

const callerKey = "caller"

// TokenVerifier проверяет access token identity provider.
// Реализация: *jwt.Verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*jwt.Identity, error)
}

// AuthMiddleware кладет проверенную пару (callerId, role) в контекст запроса.
type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware создаёт middleware аутентификации.
func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Handle возвращает Gin handler function для middleware.
func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)

		token := bearerToken(c)
		if token == "" {
			log.Debug().Msg("Отсутствует токен авторизации")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Требуется авторизация",
			})
			return
		}

		id, err := m.verifier.Verify(ctx, token)
		if err != nil {
			log.Warn().Err(err).Msg("Ошибка валидации токена")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Невалидный токен",
			})
			return
		}

		caller := domain.Caller{ID: id.UserID, Role: domain.Role(id.Role), Name: id.Name, Phone: id.Phone}
		c.Set(callerKey, caller)
		c.Request = c.Request.WithContext(logger.WithCallerID(ctx, caller.ID))

		log.Debug().
			Str("caller_id", caller.ID).
			Str("role", string(caller.Role)).
			Msg("Пользователь аутентифицирован")

		c.Next()
	}
}

// RequireRole пропускает только перечисленные роли. Ставится после Handle.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Требуется авторизация",
			})
			return
		}
		for _, r := range roles {
			if caller.Role == r {
				c.Next()
				return
			}
		}

		logger.Ctx(c.Request.Context()).Warn().
			Str("role", string(caller.Role)).
			Str("path", c.FullPath()).
			Msg("Доступ запрещен для роли")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   domain.ErrForbidden.Code,
			"message": domain.ErrForbidden.Message,
		})
	}
}

// CallerFromContext возвращает вызывающего, сохраненного AuthMiddleware.
func CallerFromContext(c *gin.Context) (domain.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return domain.Caller{}, false
	}
	caller, ok := v.(domain.Caller)
	return caller, ok
}

// SetCaller кладет вызывающего в контекст. Нужен тестам хендлеров.
func SetCaller(c *gin.Context, caller domain.Caller) {
	c.Set(callerKey, caller)
}

// bearerToken извлекает токен из "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
