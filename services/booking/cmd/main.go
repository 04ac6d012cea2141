// Booking Service - ядро маркетплейса: заявки вендорам, заказы на оплату,
// сверка платежей (verify + вебхук), выплаты вендору и admin ledger.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"example.com/vendor-marketplace/pkg/config"
	"example.com/vendor-marketplace/pkg/db"
	"example.com/vendor-marketplace/pkg/healthcheck"
	"example.com/vendor-marketplace/pkg/jwt"
	"example.com/vendor-marketplace/pkg/kafka"
	"example.com/vendor-marketplace/pkg/logger"
	"example.com/vendor-marketplace/pkg/metrics"
	"example.com/vendor-marketplace/pkg/outbox"
	"example.com/vendor-marketplace/pkg/tracing"
	"example.com/vendor-marketplace/services/booking/internal/domain"
	"example.com/vendor-marketplace/services/booking/internal/gateway"
	"example.com/vendor-marketplace/services/booking/internal/handler"
	"example.com/vendor-marketplace/services/booking/internal/middleware"
	"example.com/vendor-marketplace/services/booking/internal/notify"
	"example.com/vendor-marketplace/services/booking/internal/repository"
	"example.com/vendor-marketplace/services/booking/internal/service"
)

const serviceName = "booking-service"

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateBooking()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:   cfg.App.LogLevel,
		Pretty:  cfg.App.LogPretty,
		Service: serviceName,
	})

	logger.Info().
		Str("env", cfg.App.Env).
		Str("addr", cfg.HTTP.Addr()).
		Msg("Запуск Booking Service")

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    serviceName,
		Environment:    cfg.App.Env,
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Хранилища ===

	gdb, err := db.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		logger.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	logger.Info().Msg("Подключение к MySQL установлено")

	if cfg.MySQL.AutoMigrate {
		if err := repository.AutoMigrate(gdb); err != nil {
			logger.Fatal().Err(err).Msg("Ошибка миграции схемы")
		}
		logger.Info().Msg("Схема БД обновлена")
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	redisClient, err := db.ConnectRedis(rootCtx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Не удалось подключиться к Redis")
	}
	logger.Info().Str("addr", cfg.Redis.Addr()).Msg("Подключено к Redis")

	requestRepo := repository.NewBookingRequestRepository(gdb)
	paymentRepo := repository.NewPaymentRepository(gdb)
	bookingRepo := repository.NewBookingRepository(gdb)
	ledgerRepo := repository.NewLedgerRepository(gdb)
	eventStore := repository.NewWebhookEventStore(redisClient, cfg.Webhook.DedupeTTL)
	outboxRepo := outbox.NewRepository(gdb)

	// === Внешние системы ===

	verifier, err := jwt.NewVerifier(cfg.JWT.PublicKeyPath, cfg.JWT.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("Ошибка загрузки публичного ключа identity provider")
	}
	verifier.SetBlacklist(jwt.NewBlacklist(redisClient))

	razorpay := gateway.NewClient(gateway.Config{
		BaseURL:       cfg.Razorpay.BaseURL,
		KeyID:         cfg.Razorpay.KeyID,
		KeySecret:     cfg.Razorpay.KeySecret,
		WebhookSecret: cfg.Razorpay.WebhookSecret,
		Timeout:       cfg.Razorpay.Timeout,
	})

	policy := domain.FeePolicy{
		FeeRate:         cfg.Payout.FeeRate,
		AdvanceRate:     cfg.Payout.AdvanceRate,
		MinorUnitFactor: cfg.Payout.MinorUnitFactor,
		Places:          cfg.Payout.RoundingPlaces,
		Currency:        cfg.Payout.Currency,
	}

	// === Сервисы ===

	notifier := notify.NewOutboxNotifier(outboxRepo)
	requestService := service.NewRequestService(requestRepo, notifier)
	orderService := service.NewOrderService(requestRepo, paymentRepo, razorpay, policy)
	reconciler := service.NewReconciler(paymentRepo, eventStore, razorpay, notifier)
	payoutService := service.NewPayoutService(paymentRepo, requestRepo, bookingRepo)
	projector := service.NewLedgerProjector(ledgerRepo, paymentRepo, requestRepo, bookingRepo)

	// === Outbox relay ===

	var wg sync.WaitGroup
	var producer *kafka.Producer
	checks := []healthcheck.Check{healthcheck.MySQL(gdb), healthcheck.Redis(redisClient)}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
		if err != nil {
			logger.Fatal().Err(err).Msg("Ошибка создания Kafka producer")
		}
		relay := outbox.NewRelay(outboxRepo, producer, outbox.DefaultRelayConfig())
		wg.Add(1)
		go func() {
			defer wg.Done()
			relay.Run(rootCtx)
		}()
		checks = append(checks, healthcheck.Kafka(cfg.Kafka.Brokers))
	} else {
		logger.Warn().Msg("KAFKA_BROKERS пуст, уведомления копятся в outbox")
	}

	ready := healthcheck.Composite(checks...)

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), serviceName, metrics.WithReadinessCheck(metrics.ReadinessChecker(ready)))
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// === HTTP ===

	router := handler.NewRouter(handler.RouterConfig{
		Requests:   requestService,
		Orders:     orderService,
		Reconciler: reconciler,
		Payouts:    payoutService,
		Projector:  projector,
		AuthMW:     middleware.NewAuthMiddleware(verifier),
		RateLimitMW: middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
			Redis:  redisClient,
			Limit:  cfg.HTTP.RateLimit,
			Window: cfg.HTTP.RateWindow,
		}),
		TracingMW:      middleware.NewTracingMiddleware(),
		CORS:           middleware.DefaultCORSConfig(),
		ReadinessCheck: handler.ReadinessChecker(ready),
		Debug:          cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           router.Engine(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	// === Graceful Shutdown ===

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Ошибка при остановке сервера")
	}

	// Relay останавливается после HTTP, чтобы забрать последние уведомления.
	stop()
	wg.Wait()

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error().Err(err).Msg("Ошибка закрытия Kafka producer")
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
	}
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("Ошибка закрытия Redis")
	}
	if sqlDB, err := gdb.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(ctx); err != nil {
			logger.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	logger.Info().Msg("Booking Service остановлен")
}
