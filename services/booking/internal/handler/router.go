package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/vendor-marketplace/pkg/metrics"
	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/middleware"
	"example.com/vendor-marketplace/services/booking/internal/service"
)

const serviceName = "booking"

// ReadinessChecker - функция проверки готовности сервиса.
type ReadinessChecker func(ctx context.Context) error

// RouterConfig - зависимости роутера.
type RouterConfig struct {
	Requests   service.RequestService
	Orders     service.OrderService
	Reconciler service.Reconciler
	Payouts    service.PayoutService
	Projector  service.LedgerProjector

	AuthMW      *middleware.AuthMiddleware
	RateLimitMW *middleware.RateLimitMiddleware // nil - без ограничения
	TracingMW   *middleware.TracingMiddleware
	CORS        middleware.CORSConfig

	ReadinessCheck ReadinessChecker // опциональная проверка для /readyz
	Debug          bool
}

// Router - HTTP роутер Booking Service.
type Router struct {
	engine *gin.Engine
	cfg    RouterConfig
}

// NewRouter создаёт и настраивает HTTP роутер.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())
	engine.Use(middleware.CORS(cfg.CORS))
	engine.Use(middleware.SecurityHeaders())
	// otelgin создаёт span до TracingMW, чтобы trace_id в логах совпадал с Jaeger.
	engine.Use(otelgin.Middleware(serviceName))
	engine.Use(metrics.GinMetricsMiddleware(serviceName))
	if cfg.TracingMW != nil {
		engine.Use(cfg.TracingMW.Handle())
	}

	r := &Router{engine: engine, cfg: cfg}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.engine.GET("/healthz", r.livenessCheck)
	r.engine.GET("/readyz", r.readinessCheckHandler)

	// Вебхук аутентифицируется подписью, а не токеном, и идёт мимо rate limit:
	// провайдер шлёт доставки с нескольких IP, и 429 он считает ошибкой доставки.
	webhooks := NewWebhookHandler(r.cfg.Reconciler)
	r.engine.Group("/api/v1").POST("/webhooks/razorpay", webhooks.Razorpay)

	v1 := r.engine.Group("/api/v1")
	if r.cfg.RateLimitMW != nil {
		v1.Use(r.cfg.RateLimitMW.Handle())
	}

	authed := v1.Group("")
	authed.Use(r.cfg.AuthMW.Handle())

	requests := NewRequestHandler(r.cfg.Requests)
	req := authed.Group("/requests")
	{
		req.POST("", middleware.RequireRole(domain.RoleCustomer), requests.Create)
		req.GET("", requests.List)
		req.GET("/:id", requests.Get)
		req.POST("/:id/accept", middleware.RequireRole(domain.RoleVendor), requests.Accept)
		req.POST("/:id/decline", middleware.RequireRole(domain.RoleVendor), requests.Decline)
		req.POST("/:id/cancel", requests.Cancel)
	}

	payments := NewPaymentHandler(r.cfg.Orders, r.cfg.Reconciler)
	pay := authed.Group("/payments")
	{
		pay.POST("/orders", payments.CreateOrder)
		pay.POST("/verify", payments.Verify)
	}

	admin := NewAdminHandler(r.cfg.Payouts, r.cfg.Projector)
	adm := authed.Group("/admin", middleware.RequireRole(domain.RoleAdmin))
	{
		adm.POST("/payouts/advance", admin.ProcessAdvance)
		adm.POST("/payouts/full", admin.ProcessFull)
		adm.GET("/ledger", admin.Ledger)
		adm.GET("/payments/:id", admin.PaymentDetail)
	}
}

// Engine возвращает Gin engine для запуска сервера.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// readinessCheckHandler - 200, если зависимости доступны.
func (r *Router) readinessCheckHandler(c *gin.Context) {
	if r.cfg.ReadinessCheck == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := r.cfg.ReadinessCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
