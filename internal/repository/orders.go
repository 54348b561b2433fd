package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/ticket-booking/internal/apperror"
	"github.com/mmeshcher/ticket-booking/internal/model"
)

// CreateOrder создаёт заказ и по одной брони на каждое место в одной транзакции.
// Если хотя бы одно место уже занято, не сохраняется ничего.
func (r *PostgresRepository) CreateOrder(ctx context.Context, in model.NewOrder) (*model.Order, error) {
	// Одинаковый порядок вставки снижает вероятность дедлоков между пересекающимися заказами.
	seatIDs := slices.Clone(in.SeatIDs)
	slices.Sort(seatIDs)

	var order *model.Order

	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		reserved, err := reservedSeatIDs(ctx, tx, in.EventDateID, seatIDs)
		if err != nil {
			return err
		}
		if len(reserved) > 0 {
			return apperror.ErrSeatAlreadyReserved.WithSeats(reserved...)
		}

		o := &model.Order{
			ID:          uuid.NewString(),
			UserID:      in.UserID,
			EventDateID: in.EventDateID,
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (id, user_id, event_date_id) VALUES ($1, $2, $3) RETURNING created_at`,
			o.ID, o.UserID, o.EventDateID,
		).Scan(&o.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		o.Reservations = make([]model.Reservation, 0, len(seatIDs))
		for _, seatID := range seatIDs {
			res := model.Reservation{
				ID:          uuid.NewString(),
				OrderID:     o.ID,
				SeatID:      seatID,
				EventDateID: in.EventDateID,
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO reservations (id, order_id, seat_id, event_date_id) VALUES ($1, $2, $3, $4)`,
				res.ID, res.OrderID, res.SeatID, res.EventDateID,
			)
			if err != nil {
				return fmt.Errorf("insert reservation: %w", err)
			}
			o.Reservations = append(o.Reservations, res)
		}

		if err := enqueueEvent(ctx, tx, model.BookingEvent{
			Type:    model.EventOrderCreated,
			OrderID: o.ID,
			UserID:  o.UserID,
			SeatIDs: seatIDs,
		}); err != nil {
			return err
		}

		order = o
		return nil
	})
	if err != nil {
		if name, ok := uniqueViolation(err); ok && name == constraintActiveReservation {
			// Транзакция уже откатилась, поэтому перечень занятых мест читается заново.
			contested, lookupErr := r.ReservedSeatIDs(ctx, in.EventDateID, seatIDs)
			if lookupErr != nil {
				contested = nil
			}
			return nil, apperror.ErrSeatAlreadyReserved.WithSeats(contested...)
		}
		return nil, err
	}

	return order, nil
}

// CancelOrder отменяет заказ владельца: помечает заказ и его брони, отменяет активный платёж
// и возвращает баллы, если заказ был оплачен. Всё происходит в одной транзакции.
func (r *PostgresRepository) CancelOrder(ctx context.Context, orderID, userID string) (*model.CancelResult, error) {
	var result *model.CancelResult

	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var canceledAt *time.Time
		err := tx.QueryRow(ctx,
			`SELECT canceled_at FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE`,
			orderID, userID,
		).Scan(&canceledAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperror.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}
		if canceledAt != nil {
			return apperror.ErrAlreadyCanceled
		}

		refund, seatIDs, err := activeReservationTotal(ctx, tx, orderID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()

		if _, err := tx.Exec(ctx, `UPDATE orders SET canceled_at = $2 WHERE id = $1`, orderID, now); err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE reservations SET canceled_at = $2 WHERE order_id = $1 AND canceled_at IS NULL`,
			orderID, now,
		); err != nil {
			return fmt.Errorf("cancel reservations: %w", err)
		}

		var paidStatus *model.PaymentStatus
		var status model.PaymentStatus
		err = tx.QueryRow(ctx,
			`SELECT status FROM payments
			 WHERE order_id = $1 AND status IN ($2, $3)
			 FOR UPDATE`,
			orderID, model.PaymentStatusPending, model.PaymentStatusCompleted,
		).Scan(&status)
		switch {
		case err == nil:
			paidStatus = &status
		case errors.Is(err, pgx.ErrNoRows):
		default:
			return fmt.Errorf("lock payment: %w", err)
		}

		if paidStatus != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE payments SET status = $2, updated_at = $3 WHERE order_id = $1 AND status IN ($4, $5)`,
				orderID, model.PaymentStatusCanceled, now, model.PaymentStatusPending, model.PaymentStatusCompleted,
			); err != nil {
				return fmt.Errorf("cancel payment: %w", err)
			}
		}

		refunded := paidStatus != nil && *paidStatus == model.PaymentStatusCompleted
		if refunded && refund > 0 {
			if err := creditPoint(ctx, tx, userID, refund); err != nil {
				return err
			}
		}

		if err := enqueueEvent(ctx, tx, model.BookingEvent{
			Type:    model.EventOrderCanceled,
			OrderID: orderID,
			UserID:  userID,
			SeatIDs: seatIDs,
			Amount:  refund,
		}); err != nil {
			return err
		}

		result = &model.CancelResult{
			OrderID:    orderID,
			CanceledAt: now,
			Refund:     refund,
			Refunded:   refunded,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// activeReservationTotal возвращает сумму цен зон по неотменённым броням заказа и их места.
func activeReservationTotal(ctx context.Context, tx pgx.Tx, orderID string) (int64, []string, error) {
	rows, err := tx.Query(ctx,
		`SELECT r.seat_id, a.price
		 FROM reservations r
		 JOIN seats s ON s.id = r.seat_id
		 JOIN areas a ON a.id = s.area_id
		 WHERE r.order_id = $1 AND r.canceled_at IS NULL`,
		orderID,
	)
	if err != nil {
		return 0, nil, fmt.Errorf("select order reservations: %w", err)
	}
	defer rows.Close()

	var (
		total   int64
		seatIDs []string
	)
	for rows.Next() {
		var (
			seatID string
			price  int64
		)
		if err := rows.Scan(&seatID, &price); err != nil {
			return 0, nil, fmt.Errorf("scan reservation price: %w", err)
		}
		total += price
		seatIDs = append(seatIDs, seatID)
	}

	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("rows error: %w", err)
	}

	return total, seatIDs, nil
}

const orderDetailQuery = `
SELECT o.id, o.created_at, o.canceled_at,
       u.id, u.nickname, u.email, u.point,
       e.id, e.title, COALESCE(e.thumbnail, ''), e.place, e.event_cast, e.age_limit, e.ticketing_start_time,
       d.id, d.date,
       r.id, r.seat_id, s.seat_row, s.seat_number, a.label, a.price
FROM orders o
JOIN users u ON u.id = o.user_id
JOIN event_dates d ON d.id = o.event_date_id
JOIN events e ON e.id = d.event_id
LEFT JOIN reservations r ON r.order_id = o.id
LEFT JOIN seats s ON s.id = r.seat_id
LEFT JOIN areas a ON a.id = s.area_id
WHERE o.user_id = $1`

// FindOrders возвращает заказы пользователя, при непустом eventID — только по этому событию.
func (r *PostgresRepository) FindOrders(ctx context.Context, userID, eventID string) ([]model.OrderDetail, error) {
	var (
		sb   strings.Builder
		args = []any{userID}
	)
	sb.WriteString(orderDetailQuery)
	if eventID != "" {
		sb.WriteString(` AND e.id = $2`)
		args = append(args, eventID)
	}
	sb.WriteString(` ORDER BY o.created_at DESC, o.id, s.seat_row, s.seat_number`)

	rows, err := r.selectOrderRows(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return model.GroupOrderRows(rows), nil
}

// FindOrder возвращает заказ по идентификатору, если он принадлежит пользователю.
func (r *PostgresRepository) FindOrder(ctx context.Context, orderID, userID string) (*model.OrderDetail, error) {
	rows, err := r.selectOrderRows(ctx,
		orderDetailQuery+` AND o.id = $2 ORDER BY s.seat_row, s.seat_number`,
		userID, orderID,
	)
	if err != nil {
		return nil, err
	}

	orders := model.GroupOrderRows(rows)
	if len(orders) == 0 {
		return nil, apperror.ErrOrderNotFound
	}
	return &orders[0], nil
}

func (r *PostgresRepository) selectOrderRows(ctx context.Context, query string, args ...any) ([]model.OrderRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.OrderRow
	for rows.Next() {
		var (
			row       model.OrderRow
			resID     *string
			seatID    *string
			seatRow   *int
			seatNum   *int
			areaLabel *string
			areaPrice *int64
		)
		if err := rows.Scan(
			&row.OrderID, &row.OrderCreatedAt, &row.OrderCanceledAt,
			&row.User.ID, &row.User.Nickname, &row.User.Email, &row.User.Point,
			&row.Event.ID, &row.Event.Title, &row.Event.Thumbnail, &row.Event.Place, &row.Event.Cast,
			&row.Event.AgeLimit, &row.Event.TicketingStartTime,
			&row.EventDateID, &row.EventDate,
			&resID, &seatID, &seatRow, &seatNum, &areaLabel, &areaPrice,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}

		if resID != nil && seatID != nil && seatRow != nil && seatNum != nil && areaLabel != nil && areaPrice != nil {
			row.Reservation = &model.ReservationSummary{
				ID:        *resID,
				SeatID:    *seatID,
				Row:       *seatRow,
				Number:    *seatNum,
				AreaLabel: *areaLabel,
				Price:     *areaPrice,
			}
		}

		res = append(res, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
