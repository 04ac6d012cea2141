package outbox

import (
	"context"
	"time"

	"example.com/vendor-marketplace/pkg/kafka"
	"example.com/vendor-marketplace/pkg/logger"
)

// Publisher отправляет сообщение в брокер.
type Publisher interface {
	SendMessage(ctx context.Context, msg *kafka.Message) error
}

// RelayConfig - настройки Relay.
type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxAttempts - после стольких ошибок запись снимается с очереди (dead letter).
	MaxAttempts int
	// Retention - сколько хранить опубликованные записи.
	Retention       time.Duration
	CleanupInterval time.Duration
}

// DefaultRelayConfig возвращает настройки по умолчанию.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		PollInterval:    time.Second,
		BatchSize:       100,
		MaxAttempts:     5,
		Retention:       7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
	}
}

// Relay переносит записи outbox в Kafka.
type Relay struct {
	repo      Repository
	publisher Publisher
	cfg       RelayConfig
}

// NewRelay создаёт Relay.
func NewRelay(repo Repository, publisher Publisher, cfg RelayConfig) *Relay {
	return &Relay{repo: repo, publisher: publisher, cfg: cfg}
}

// Run опрашивает outbox до отмены ctx.
func (w *Relay) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Dur("poll_interval", w.cfg.PollInterval).
		Int("batch_size", w.cfg.BatchSize).
		Msg("Запуск Outbox Relay")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	cleanup := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Остановка Outbox Relay")
			return
		case <-ticker.C:
			w.relayBatch(ctx)
		case <-cleanup.C:
			w.cleanup(ctx)
		}
	}
}

func (w *Relay) relayBatch(ctx context.Context) {
	log := logger.FromContext(ctx)

	records, err := w.repo.Pending(ctx, w.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Ошибка чтения outbox")
		return
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			return
		}

		if rec.Attempts >= w.cfg.MaxAttempts {
			log.Warn().
				Str("outbox_id", rec.ID).
				Str("event_type", rec.EventType).
				Str("aggregate_id", rec.AggregateID).
				Int("attempts", rec.Attempts).
				Msg("Dead letter: превышен лимит попыток, запись снята с очереди")
			if err := w.repo.MarkPublished(ctx, rec.ID); err != nil {
				log.Error().Err(err).Str("outbox_id", rec.ID).Msg("Ошибка пометки dead letter")
			}
			continue
		}

		_ = w.Publish(ctx, rec)
	}
}

// Publish отправляет одну запись и отмечает результат в outbox.
func (w *Relay) Publish(ctx context.Context, rec *Record) error {
	log := logger.FromContext(ctx)

	if err := w.publisher.SendMessage(ctx, rec.message()); err != nil {
		log.Error().Err(err).Str("outbox_id", rec.ID).Str("topic", rec.Topic).Msg("Ошибка отправки в Kafka")
		if markErr := w.repo.MarkFailed(ctx, rec.ID, err); markErr != nil {
			log.Error().Err(markErr).Str("outbox_id", rec.ID).Msg("Ошибка пометки outbox как failed")
		}
		return err
	}

	if err := w.repo.MarkPublished(ctx, rec.ID); err != nil {
		// Запись уйдет повторно; получатель обязан быть идемпотентным.
		log.Error().Err(err).Str("outbox_id", rec.ID).Msg("Ошибка пометки outbox как опубликованной")
		return err
	}

	log.Debug().Str("outbox_id", rec.ID).Str("event_type", rec.EventType).Msg("Событие опубликовано")
	return nil
}

func (w *Relay) cleanup(ctx context.Context) {
	deleted, err := w.repo.DeletePublishedBefore(ctx, time.Now().UTC().Add(-w.cfg.Retention))
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("Ошибка очистки outbox")
		return
	}
	if deleted > 0 {
		logger.Ctx(ctx).Info().Int64("deleted", deleted).Msg("Очистка опубликованных записей outbox")
	}
}
