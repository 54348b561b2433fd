package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/ticket-booking/internal/apperror"
	"github.com/mmeshcher/ticket-booking/internal/model"
)

// GetUser возвращает пользователя вместе с текущим балансом баллов.
func (r *PostgresRepository) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, nickname, email, role, point FROM users WHERE id = $1`,
		userID,
	).Scan(&u.ID, &u.Nickname, &u.Email, &u.Role, &u.Point)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetEventDate возвращает дату мероприятия, если она принадлежит событию eventID.
func (r *PostgresRepository) GetEventDate(ctx context.Context, eventDateID, eventID string) (*model.EventDate, error) {
	var (
		d         model.EventDate
		thumbnail *string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT d.id, d.date, e.id, e.title, e.thumbnail, e.place, e.event_cast, e.age_limit, e.ticketing_start_time
		 FROM event_dates d
		 JOIN events e ON e.id = d.event_id
		 WHERE d.id = $1 AND e.id = $2`,
		eventDateID, eventID,
	).Scan(
		&d.ID, &d.Date,
		&d.Event.ID, &d.Event.Title, &thumbnail, &d.Event.Place, &d.Event.Cast,
		&d.Event.AgeLimit, &d.Event.TicketingStartTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.ErrEventDateNotFound
		}
		return nil, fmt.Errorf("get event date: %w", err)
	}
	if thumbnail != nil {
		d.Event.Thumbnail = *thumbnail
	}
	return &d, nil
}

// GetSeatsByIDs возвращает места события вместе с ценой их зоны.
// Места чужих событий и несуществующие идентификаторы в результат не попадают.
func (r *PostgresRepository) GetSeatsByIDs(ctx context.Context, eventID string, seatIDs []string) ([]model.Seat, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.cx, s.cy, s.seat_row, s.seat_number, a.id, a.label, a.price
		 FROM seats s
		 JOIN areas a ON a.id = s.area_id
		 WHERE s.id = ANY($1) AND a.event_id = $2
		 ORDER BY s.seat_row, s.seat_number`,
		seatIDs, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("select seats: %w", err)
	}
	defer rows.Close()

	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.Cx, &s.Cy, &s.Row, &s.Number, &s.Area.ID, &s.Area.Label, &s.Area.Price); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seats = append(seats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return seats, nil
}

// GetSeat возвращает одно место события.
func (r *PostgresRepository) GetSeat(ctx context.Context, seatID, eventID string) (*model.Seat, error) {
	seats, err := r.GetSeatsByIDs(ctx, eventID, []string{seatID})
	if err != nil {
		return nil, err
	}
	if len(seats) == 0 {
		return nil, apperror.ErrSeatNotFound.WithSeats(seatID)
	}
	return &seats[0], nil
}

// ReservedSeatIDs возвращает те из seatIDs, что уже заняты на дату eventDateID.
// Это только предварительная проверка: окончательно конфликт определяет уникальный индекс.
func (r *PostgresRepository) ReservedSeatIDs(ctx context.Context, eventDateID string, seatIDs []string) ([]string, error) {
	return reservedSeatIDs(ctx, r.pool, eventDateID, seatIDs)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func reservedSeatIDs(ctx context.Context, q querier, eventDateID string, seatIDs []string) ([]string, error) {
	rows, err := q.Query(ctx,
		`SELECT seat_id FROM reservations
		 WHERE event_date_id = $1 AND seat_id = ANY($2) AND canceled_at IS NULL
		 ORDER BY seat_id`,
		eventDateID, seatIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select reserved seats: %w", err)
	}
	defer rows.Close()

	reserved := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reserved seat: %w", err)
		}
		reserved = append(reserved, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return reserved, nil
}
