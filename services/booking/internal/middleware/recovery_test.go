package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"example.com/vendor-marketplace/pkg/logger"
)

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	prev := logger.Logger()
	logger.SetGlobalLogger(zerolog.New(&buf))
	defer logger.SetGlobalLogger(prev)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(*gin.Context) { panic("nil map write") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "nil map")
	assert.Contains(t, buf.String(), "nil map write")
	assert.Contains(t, buf.String(), "stack")
}
