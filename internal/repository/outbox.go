package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/ticket-booking/internal/model"
)

// OutboxEvent описывает неотправленное событие бронирования.
type OutboxEvent struct {
	ID      string
	Type    string
	Payload []byte
}

// enqueueEvent сохраняет событие в outbox в рамках текущей транзакции.
func enqueueEvent(ctx context.Context, tx pgx.Tx, ev model.BookingEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO outbox_events (id, event_type, aggregate_id, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.Type, ev.OrderID, payload, ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// PendingEvents возвращает неотправленные события в порядке их появления.
func (r *PostgresRepository) PendingEvents(ctx context.Context, limit int) ([]OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, event_type, payload
		 FROM outbox_events
		 WHERE sent_at IS NULL
		 ORDER BY created_at, id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select outbox events: %w", err)
	}
	defer rows.Close()

	res := make([]OutboxEvent, 0, limit)
	for rows.Next() {
		var ev OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		res = append(res, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkEventsSent помечает события отправленными.
func (r *PostgresRepository) MarkEventsSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE outbox_events SET sent_at = NOW() WHERE id = ANY($1) AND sent_at IS NULL`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("mark outbox events sent: %w", err)
	}
	return nil
}
