// Package repository содержит реализацию доступа к данным бронирования в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const defaultTxTimeout = 5 * time.Second

// Имена ограничений, нарушение которых означает конфликт бронирования.
const (
	constraintActiveReservation = "reservations_seat_event_date_active_uidx"
	constraintActivePayment     = "payments_order_active_uidx"
)

var retryDelays = []time.Duration{50 * time.Millisecond, 150 * time.Millisecond, 300 * time.Millisecond}

// PostgresRepository предоставляет доступ к хранилищу бронирований в PostgreSQL.
type PostgresRepository struct {
	pool      *pgxpool.Pool
	txTimeout time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
// txTimeout ограничивает каждую транзакцию бронирования как по контексту, так и через statement_timeout.
func NewPostgresRepository(dsn string, txTimeout time.Duration) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if txTimeout <= 0 {
		txTimeout = defaultTxTimeout
	}

	r := &PostgresRepository{pool: pool, txTimeout: txTimeout}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Ping проверяет доступность базы данных.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// inTx выполняет fn в одной транзакции с ограничением по времени.
// Любая ошибка fn откатывает все сделанные записи. Сбои сериализации, дедлоки и обрывы соединения
// до COMMIT повторяются целиком; сбой самого COMMIT возвращается как есть.
func (r *PostgresRepository) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return withRetry(ctx, func() error {
		txCtx, cancel := context.WithTimeout(ctx, r.txTimeout)
		defer cancel()

		tx, err := r.pool.Begin(txCtx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(txCtx)

		timeout := strconv.FormatInt(r.txTimeout.Milliseconds(), 10)
		if _, err := tx.Exec(txCtx, `SELECT set_config('statement_timeout', $1, true)`, timeout); err != nil {
			return fmt.Errorf("set statement timeout: %w", err)
		}

		if err := fn(txCtx, tx); err != nil {
			return err
		}

		if err := tx.Commit(txCtx); err != nil {
			return fmt.Errorf("%w: %w", errCommit, err)
		}
		return nil
	})
}

func withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(retryDelays) {
			break
		}

		timer := time.NewTimer(retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// errCommit помечает сбой на COMMIT. Такая транзакция могла успеть зафиксироваться,
// поэтому повторять её нельзя.
var errCommit = errors.New("commit tx")

func isRetryable(err error) bool {
	if errors.Is(err, errCommit) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// uniqueViolation возвращает имя нарушенного уникального ограничения.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
