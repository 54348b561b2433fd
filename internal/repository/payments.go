package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/ticket-booking/internal/apperror"
	"github.com/mmeshcher/ticket-booking/internal/model"
)

// CreatePayment создаёт платёж в статусе pending.
// Сумма пересчитывается по ценам зон забронированных мест: нулевая сумма заменяется расчётной,
// несовпадающая отклоняется. У заказа может быть только один неотменённый платёж.
func (r *PostgresRepository) CreatePayment(ctx context.Context, in model.NewPayment) (*model.Payment, error) {
	var payment *model.Payment

	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var canceledAt *time.Time
		err := tx.QueryRow(ctx,
			`SELECT canceled_at FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE`,
			in.OrderID, in.UserID,
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

		total, seatIDs, err := activeReservationTotal(ctx, tx, in.OrderID)
		if err != nil {
			return err
		}
		if len(seatIDs) == 0 {
			return apperror.ErrOrderIntegrity
		}

		amount := in.Amount
		if amount == 0 {
			amount = total
		}
		if amount != total {
			return apperror.ErrPaymentAmountMismatch
		}

		active, err := hasActivePayment(ctx, tx, in.OrderID)
		if err != nil {
			return err
		}
		if active {
			return apperror.ErrExistingPayment
		}

		p := &model.Payment{
			ID:      uuid.NewString(),
			OrderID: in.OrderID,
			Amount:  amount,
			Method:  in.Method,
			Status:  model.PaymentStatusPending,
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO payments (id, order_id, amount, method, status)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING created_at, updated_at`,
			p.ID, p.OrderID, p.Amount, p.Method, p.Status,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		if err := enqueueEvent(ctx, tx, model.BookingEvent{
			Type:      model.EventPaymentCreated,
			OrderID:   p.OrderID,
			UserID:    in.UserID,
			PaymentID: p.ID,
			Amount:    p.Amount,
		}); err != nil {
			return err
		}

		payment = p
		return nil
	})
	if err != nil {
		if name, ok := uniqueViolation(err); ok && name == constraintActivePayment {
			return nil, apperror.ErrExistingPayment
		}
		return nil, err
	}

	return payment, nil
}

// UpdatePaymentStatus переводит платёж в новый статус и возвращает баланс пользователя после перехода.
// Переход в completed списывает сумму платежа с баланса в той же транзакции.
func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, in model.PaymentUpdate) (*model.Payment, int64, error) {
	var (
		payment *model.Payment
		point   int64
	)

	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		p := &model.Payment{}
		err := tx.QueryRow(ctx,
			`SELECT p.id, p.order_id, p.amount, p.method, p.status, p.paid_at, p.created_at
			 FROM payments p
			 JOIN orders o ON o.id = p.order_id
			 WHERE p.id = $1 AND p.order_id = $2 AND o.user_id = $3
			 FOR UPDATE OF p`,
			in.PaymentID, in.OrderID, in.UserID,
		).Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.Status, &p.PaidAt, &p.CreatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperror.ErrPaymentNotFound
			}
			return fmt.Errorf("lock payment: %w", err)
		}

		if !model.CanTransition(p.Status, in.Status) {
			return apperror.ErrInvalidTransition
		}

		now := time.Now().UTC()

		if in.Status == model.PaymentStatusCompleted {
			balance, err := debitPoint(ctx, tx, in.UserID, p.Amount)
			if err != nil {
				return err
			}
			point = balance
			p.PaidAt = &now
		} else {
			if err := tx.QueryRow(ctx, `SELECT point FROM users WHERE id = $1`, in.UserID).Scan(&point); err != nil {
				return fmt.Errorf("select point: %w", err)
			}
		}

		p.Status = in.Status
		p.UpdatedAt = now
		if _, err := tx.Exec(ctx,
			`UPDATE payments SET status = $2, paid_at = $3, updated_at = $4 WHERE id = $1`,
			p.ID, p.Status, p.PaidAt, p.UpdatedAt,
		); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		if err := enqueueEvent(ctx, tx, model.BookingEvent{
			Type:      model.PaymentEventType(p.Status),
			OrderID:   p.OrderID,
			UserID:    in.UserID,
			PaymentID: p.ID,
			Amount:    p.Amount,
		}); err != nil {
			return err
		}

		payment = p
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return payment, point, nil
}

// hasActivePayment сообщает, есть ли у заказа неотменённый платёж.
// Уникальный индекс payments_order_active_uidx страхует эту проверку от гонки.
func hasActivePayment(ctx context.Context, tx pgx.Tx, orderID string) (bool, error) {
	rows, err := tx.Query(ctx, `SELECT status FROM payments WHERE order_id = $1`, orderID)
	if err != nil {
		return false, fmt.Errorf("select order payments: %w", err)
	}
	statuses, err := pgx.CollectRows(rows, pgx.RowTo[model.PaymentStatus])
	if err != nil {
		return false, fmt.Errorf("scan payment status: %w", err)
	}
	return slices.ContainsFunc(statuses, model.PaymentStatus.Active), nil
}

// debitPoint атомарно списывает amount с баланса. Если баллов не хватает, строка не обновляется.
func debitPoint(ctx context.Context, tx pgx.Tx, userID string, amount int64) (int64, error) {
	var point int64
	err := tx.QueryRow(ctx,
		`UPDATE users SET point = point - $2, updated_at = NOW()
		 WHERE id = $1 AND point >= $2
		 RETURNING point`,
		userID, amount,
	).Scan(&point)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperror.ErrInsufficientBalance
		}
		return 0, fmt.Errorf("debit point: %w", err)
	}
	return point, nil
}

func creditPoint(ctx context.Context, tx pgx.Tx, userID string, amount int64) error {
	cmdTag, err := tx.Exec(ctx,
		`UPDATE users SET point = point + $2, updated_at = NOW() WHERE id = $1`,
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("credit point: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperror.ErrUserNotFound
	}
	return nil
}
