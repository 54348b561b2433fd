// Package service реализует бизнес-логику бронирования мест.
package service

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/ticket-booking/internal/apperror"
	"github.com/mmeshcher/ticket-booking/internal/metrics"
	"github.com/mmeshcher/ticket-booking/internal/model"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetUser(ctx context.Context, userID string) (*model.User, error)
	GetEventDate(ctx context.Context, eventDateID, eventID string) (*model.EventDate, error)
	GetSeatsByIDs(ctx context.Context, eventID string, seatIDs []string) ([]model.Seat, error)
	ReservedSeatIDs(ctx context.Context, eventDateID string, seatIDs []string) ([]string, error)
	CreateOrder(ctx context.Context, in model.NewOrder) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID, userID string) (*model.CancelResult, error)
	FindOrders(ctx context.Context, userID, eventID string) ([]model.OrderDetail, error)
	FindOrder(ctx context.Context, orderID, userID string) (*model.OrderDetail, error)
	CreatePayment(ctx context.Context, in model.NewPayment) (*model.Payment, error)
	UpdatePaymentStatus(ctx context.Context, in model.PaymentUpdate) (*model.Payment, int64, error)
}

// Catalog возвращает даты мероприятий; обычно это кэш поверх репозитория.
type Catalog interface {
	GetEventDate(ctx context.Context, eventDateID, eventID string) (*model.EventDate, error)
}

// CreateOrderInput — запрос на бронирование мест.
type CreateOrderInput struct {
	UserID      string
	EventID     string
	EventDateID string
	SeatIDs     []string
}

// Service содержит бизнес-логику бронирования.
type Service struct {
	repo    Repository
	catalog Catalog
	metrics *metrics.BookingMetrics
	logger  *zap.Logger
}

// NewService создаёт сервис. Если catalog равен nil, даты читаются напрямую из репозитория.
func NewService(repo Repository, catalog Catalog, m *metrics.BookingMetrics, logger *zap.Logger) *Service {
	if catalog == nil {
		catalog = repo
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		catalog: catalog,
		metrics: m,
		logger:  logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) observe(op string, start time.Time, err error) {
	s.metrics.ObserveOperation(op, err, time.Since(start))

	if err == nil {
		return
	}
	appErr := apperror.From(err)
	if appErr.Kind == apperror.KindInternal {
		s.logger.Error("booking operation failed", zap.String("operation", op), zap.Error(err))
		return
	}
	s.logger.Info("booking operation rejected",
		zap.String("operation", op),
		zap.Int("code", appErr.Code),
		zap.Strings("seatIDs", appErr.SeatIDs),
	)
}

// CreateOrder бронирует места на дату мероприятия.
// Предварительные проверки идут в порядке: пользователь, дата, места, занятость мест.
// Окончательное решение о занятости принимает транзакция репозитория.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (summary *model.OrderSummary, err error) {
	defer func(start time.Time) { s.observe("create_order", start, err) }(time.Now())

	if len(in.SeatIDs) == 0 || hasDuplicates(in.SeatIDs) {
		return nil, apperror.ErrValidation
	}

	user, err := s.repo.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	date, err := s.catalog.GetEventDate(ctx, in.EventDateID, in.EventID)
	if err != nil {
		return nil, err
	}

	seats, err := s.repo.GetSeatsByIDs(ctx, in.EventID, in.SeatIDs)
	if err != nil {
		return nil, err
	}
	if missing := missingSeatIDs(in.SeatIDs, seats); len(missing) > 0 {
		return nil, apperror.ErrSeatNotFound.WithSeats(missing...)
	}

	reserved, err := s.repo.ReservedSeatIDs(ctx, in.EventDateID, in.SeatIDs)
	if err != nil {
		return nil, err
	}
	if len(reserved) > 0 {
		return nil, apperror.ErrSeatAlreadyReserved.WithSeats(reserved...)
	}

	order, err := s.repo.CreateOrder(ctx, model.NewOrder{
		UserID:      user.ID,
		EventDateID: date.ID,
		SeatIDs:     in.SeatIDs,
	})
	if err != nil {
		return nil, err
	}

	return buildOrderSummary(order, user, date, seats), nil
}

func buildOrderSummary(order *model.Order, user *model.User, date *model.EventDate, seats []model.Seat) *model.OrderSummary {
	bySeat := make(map[string]model.Seat, len(seats))
	for _, seat := range seats {
		bySeat[seat.ID] = seat
	}

	summary := &model.OrderSummary{
		ID:        order.ID,
		CreatedAt: order.CreatedAt,
		User: model.UserInfo{
			ID:       user.ID,
			Nickname: user.Nickname,
			Email:    user.Email,
			Point:    user.Point,
		},
		Event:        toEventSummary(date.Event),
		EventDate:    date.Date,
		Reservations: make([]model.ReservationSummary, 0, len(order.Reservations)),
	}

	for _, res := range order.Reservations {
		seat := bySeat[res.SeatID]
		summary.Reservations = append(summary.Reservations, model.ReservationSummary{
			ID:        res.ID,
			SeatID:    res.SeatID,
			Row:       seat.Row,
			Number:    seat.Number,
			AreaLabel: seat.Area.Label,
			Price:     seat.Area.Price,
		})
		summary.TotalAmount += seat.Area.Price
	}

	return summary
}

func toEventSummary(e model.Event) model.EventSummary {
	return model.EventSummary{
		ID:                 e.ID,
		Title:              e.Title,
		Thumbnail:          e.Thumbnail,
		Place:              e.Place,
		Cast:               e.Cast,
		AgeLimit:           e.AgeLimit,
		TicketingStartTime: e.TicketingStartTime,
	}
}

func missingSeatIDs(requested []string, found []model.Seat) []string {
	known := make(map[string]struct{}, len(found))
	for _, seat := range found {
		known[seat.ID] = struct{}{}
	}

	var missing []string
	for _, id := range requested {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func hasDuplicates(ids []string) bool {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return len(slices.Compact(sorted)) != len(ids)
}

// CreatePayment создаёт платёж в статусе pending.
// Нулевая сумма означает оплату полной стоимости заказа.
func (s *Service) CreatePayment(ctx context.Context, in model.NewPayment) (summary *model.PaymentSummary, err error) {
	defer func(start time.Time) { s.observe("create_payment", start, err) }(time.Now())

	if !in.Method.Valid() || in.Amount < 0 {
		return nil, apperror.ErrValidation
	}

	user, err := s.repo.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	payment, err := s.repo.CreatePayment(ctx, in)
	if err != nil {
		return nil, err
	}

	return model.NewPaymentSummary(payment, user.Point), nil
}

// UpdatePayment переводит платёж в новый статус.
func (s *Service) UpdatePayment(ctx context.Context, in model.PaymentUpdate) (summary *model.PaymentSummary, err error) {
	defer func(start time.Time) { s.observe("update_payment", start, err) }(time.Now())

	if !in.Status.Valid() {
		return nil, apperror.ErrValidation
	}

	if _, err := s.repo.GetUser(ctx, in.UserID); err != nil {
		return nil, err
	}

	payment, point, err := s.repo.UpdatePaymentStatus(ctx, in)
	if err != nil {
		return nil, err
	}

	return model.NewPaymentSummary(payment, point), nil
}

// CancelOrder отменяет заказ пользователя и освобождает его места.
func (s *Service) CancelOrder(ctx context.Context, orderID, userID string) (res *model.CancelResult, err error) {
	defer func(start time.Time) { s.observe("cancel_order", start, err) }(time.Now())

	return s.repo.CancelOrder(ctx, orderID, userID)
}

// FindOrders возвращает заказы пользователя, при непустом eventID — только по этому событию.
func (s *Service) FindOrders(ctx context.Context, userID, eventID string) ([]model.OrderDetail, error) {
	return s.repo.FindOrders(ctx, userID, eventID)
}

// FindOrder возвращает заказ пользователя по идентификатору.
func (s *Service) FindOrder(ctx context.Context, orderID, userID string) (*model.OrderDetail, error) {
	return s.repo.FindOrder(ctx, orderID, userID)
}

// GetBalance возвращает текущий баланс баллов пользователя.
func (s *Service) GetBalance(ctx context.Context, userID string) (*model.UserInfo, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.UserInfo{ID: u.ID, Nickname: u.Nickname, Email: u.Email, Point: u.Point}, nil
}
