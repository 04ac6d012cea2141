// Notifier - читает события уведомлений из Kafka и доставляет их
// получателям через провайдера WhatsApp/SMS.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"example.com/vendor-marketplace/pkg/config"
	"example.com/vendor-marketplace/pkg/db"
	"example.com/vendor-marketplace/pkg/healthcheck"
	"example.com/vendor-marketplace/pkg/kafka"
	"example.com/vendor-marketplace/pkg/logger"
	"example.com/vendor-marketplace/pkg/metrics"
	"example.com/vendor-marketplace/pkg/tracing"
	"example.com/vendor-marketplace/services/notifier/internal/delivery"
	"example.com/vendor-marketplace/services/notifier/internal/sender"
)

const (
	serviceName = "notifier"
	maxRetries  = 3
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:   cfg.App.LogLevel,
		Pretty:  cfg.App.LogPretty,
		Service: serviceName,
	})
	log := logger.Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Strs("brokers", cfg.Kafka.Brokers).
		Str("channel", cfg.Notification.Channel).
		Msg("Запуск Notifier")

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    serviceName,
		Environment:    cfg.App.Env,
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := db.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Не удалось подключиться к Redis")
	}

	kafkaCfg := kafka.Config{Brokers: cfg.Kafka.Brokers, ConsumerGroup: cfg.Kafka.ConsumerGroup}

	producer, err := kafka.NewProducer(kafkaCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка создания Kafka producer для DLQ")
	}

	consumer, err := kafka.NewConsumer(kafkaCfg, kafka.TopicNotifications)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка создания Kafka consumer")
	}
	consumer.SetDLQ(producer)

	provider := sender.NewProvider(sender.Config{
		URL:      cfg.Notification.ProviderURL,
		Token:    cfg.Notification.Token,
		SenderID: cfg.Notification.SenderID,
		Channel:  cfg.Notification.Channel,
		Timeout:  cfg.Notification.Timeout,
	})
	h := delivery.NewHandler(provider, redisClient, 0)

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		ready := healthcheck.Composite(healthcheck.Redis(redisClient), healthcheck.Kafka(cfg.Kafka.Brokers))
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), serviceName, metrics.WithReadinessCheck(metrics.ReadinessChecker(ready)))
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(ctx, kafka.WithRetry(h.Handle, maxRetries))
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Получен сигнал завершения")
	case err := <-done:
		log.Error().Err(err).Msg("Consumer остановился")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := consumer.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия consumer")
	}
	if err := producer.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия producer")
	}
	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Redis")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	log.Info().Msg("Notifier остановлен")
}
