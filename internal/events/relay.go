package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/ticket-booking/internal/metrics"
	"github.com/mmeshcher/ticket-booking/internal/repository"
)

const defaultBatchSize = 100

// Source отдаёт неотправленные события outbox и принимает подтверждения отправки.
type Source interface {
	PendingEvents(ctx context.Context, limit int) ([]repository.OutboxEvent, error)
	MarkEventsSent(ctx context.Context, ids []string) error
}

// Publisher отправляет событие во внешний брокер.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte) error
}

// Relay периодически переносит события из outbox в брокер.
// Доставка «как минимум один раз»: событие помечается отправленным только после успешной публикации.
type Relay struct {
	source    Source
	publisher Publisher
	interval  time.Duration
	metrics   *metrics.BookingMetrics
	logger    *zap.Logger
}

// NewRelay создаёт relay с указанным интервалом опроса.
func NewRelay(source Source, publisher Publisher, interval time.Duration, m *metrics.BookingMetrics, logger *zap.Logger) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		source:    source,
		publisher: publisher,
		interval:  interval,
		metrics:   m,
		logger:    logger,
	}
}

// Run опрашивает outbox до отмены контекста.
func (r *Relay) Run(ctx context.Context) error {
	if r.publisher == nil {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch публикует одну пачку событий и возвращает число отправленных.
// Публикация останавливается на первой ошибке, чтобы сохранить порядок событий.
func (r *Relay) ProcessBatch(ctx context.Context) int {
	batch, err := r.source.PendingEvents(ctx, defaultBatchSize)
	if err != nil {
		r.logger.Warn("load outbox events", zap.Error(err))
		return 0
	}

	sent := make([]string, 0, len(batch))
	for _, ev := range batch {
		if err := r.publisher.Publish(ctx, ev.Type, ev.Payload); err != nil {
			r.metrics.RelayFailed()
			r.logger.Warn("publish booking event",
				zap.String("eventID", ev.ID),
				zap.String("type", ev.Type),
				zap.Error(err),
			)
			break
		}
		r.metrics.EventRelayed(ev.Type)
		sent = append(sent, ev.ID)
	}

	if len(sent) == 0 {
		return 0
	}

	if err := r.source.MarkEventsSent(ctx, sent); err != nil {
		r.logger.Warn("mark outbox events sent", zap.Int("count", len(sent)), zap.Error(err))
		return 0
	}

	return len(sent)
}
