package service

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/mmeshcher/ticket-booking/internal/apperror"
	"github.com/mmeshcher/ticket-booking/internal/model"
)

type stubRepo struct {
	calls []string

	user    *model.User
	userErr error

	date    *model.EventDate
	dateErr error

	seats    []model.Seat
	seatsErr error

	reserved []string

	order    *model.Order
	orderErr error
	newOrder model.NewOrder

	payment    *model.Payment
	paymentErr error
	point      int64

	cancel    *model.CancelResult
	cancelErr error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) GetUser(ctx context.Context, userID string) (*model.User, error) {
	s.calls = append(s.calls, "GetUser")
	return s.user, s.userErr
}

func (s *stubRepo) GetEventDate(ctx context.Context, eventDateID, eventID string) (*model.EventDate, error) {
	s.calls = append(s.calls, "GetEventDate")
	return s.date, s.dateErr
}

func (s *stubRepo) GetSeatsByIDs(ctx context.Context, eventID string, seatIDs []string) ([]model.Seat, error) {
	s.calls = append(s.calls, "GetSeatsByIDs")
	return s.seats, s.seatsErr
}

func (s *stubRepo) ReservedSeatIDs(ctx context.Context, eventDateID string, seatIDs []string) ([]string, error) {
	s.calls = append(s.calls, "ReservedSeatIDs")
	return s.reserved, nil
}

func (s *stubRepo) CreateOrder(ctx context.Context, in model.NewOrder) (*model.Order, error) {
	s.calls = append(s.calls, "CreateOrder")
	s.newOrder = in
	return s.order, s.orderErr
}

func (s *stubRepo) CancelOrder(ctx context.Context, orderID, userID string) (*model.CancelResult, error) {
	s.calls = append(s.calls, "CancelOrder")
	return s.cancel, s.cancelErr
}

func (s *stubRepo) FindOrders(ctx context.Context, userID, eventID string) ([]model.OrderDetail, error) {
	return nil, nil
}

func (s *stubRepo) FindOrder(ctx context.Context, orderID, userID string) (*model.OrderDetail, error) {
	return nil, apperror.ErrOrderNotFound
}

func (s *stubRepo) CreatePayment(ctx context.Context, in model.NewPayment) (*model.Payment, error) {
	s.calls = append(s.calls, "CreatePayment")
	return s.payment, s.paymentErr
}

func (s *stubRepo) UpdatePaymentStatus(ctx context.Context, in model.PaymentUpdate) (*model.Payment, int64, error) {
	s.calls = append(s.calls, "UpdatePaymentStatus")
	return s.payment, s.point, s.paymentErr
}

func newBookableRepo() *stubRepo {
	return &stubRepo{
		user: &model.User{ID: "u1", Nickname: "neo", Email: "neo@example.com", Point: 100000},
		date: &model.EventDate{
			ID:    "d1",
			Date:  time.Date(2026, 12, 1, 19, 0, 0, 0, time.UTC),
			Event: model.Event{ID: "e1", Title: "Concert", Place: "Hall"},
		},
		seats: []model.Seat{
			{ID: "s1", Row: 1, Number: 1, Area: model.Area{ID: "a1", Label: "VIP", Price: 30000}},
			{ID: "s2", Row: 1, Number: 2, Area: model.Area{ID: "a2", Label: "R", Price: 20000}},
		},
		order: &model.Order{
			ID:          "o1",
			UserID:      "u1",
			EventDateID: "d1",
			Reservations: []model.Reservation{
				{ID: "r1", OrderID: "o1", SeatID: "s1", EventDateID: "d1"},
				{ID: "r2", OrderID: "o1", SeatID: "s2", EventDateID: "d1"},
			},
		},
	}
}

func TestCreateOrder_BuildsSummary(t *testing.T) {
	repo := newBookableRepo()
	svc := NewService(repo, nil, nil, nil)

	summary, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID: "u1", EventID: "e1", EventDateID: "d1", SeatIDs: []string{"s1", "s2"},
	})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	if summary.TotalAmount != 50000 {
		t.Fatalf("TotalAmount = %d, want 50000", summary.TotalAmount)
	}
	if len(summary.Reservations) != 2 || summary.Reservations[0].AreaLabel != "VIP" {
		t.Fatalf("unexpected reservations: %+v", summary.Reservations)
	}
	if summary.User.Point != 100000 || summary.Event.Title != "Concert" {
		t.Fatalf("unexpected summary header: %+v", summary)
	}

	want := []string{"GetUser", "GetEventDate", "GetSeatsByIDs", "ReservedSeatIDs", "CreateOrder"}
	if !slices.Equal(repo.calls, want) {
		t.Fatalf("calls = %v, want %v", repo.calls, want)
	}
	if repo.newOrder.UserID != "u1" || repo.newOrder.EventDateID != "d1" {
		t.Fatalf("unexpected NewOrder: %+v", repo.newOrder)
	}
}

func TestCreateOrder_PrecheckOrder(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *stubRepo)
		wantErr   error
		wantCalls int
	}{
		{
			name:      "user missing",
			mutate:    func(r *stubRepo) { r.userErr = apperror.ErrUserNotFound },
			wantErr:   apperror.ErrUserNotFound,
			wantCalls: 1,
		},
		{
			name:      "event date missing",
			mutate:    func(r *stubRepo) { r.dateErr = apperror.ErrEventDateNotFound },
			wantErr:   apperror.ErrEventDateNotFound,
			wantCalls: 2,
		},
		{
			name:      "seat missing",
			mutate:    func(r *stubRepo) { r.seats = r.seats[:1] },
			wantErr:   apperror.ErrSeatNotFound,
			wantCalls: 3,
		},
		{
			name:      "seat already reserved",
			mutate:    func(r *stubRepo) { r.reserved = []string{"s2"} },
			wantErr:   apperror.ErrSeatAlreadyReserved,
			wantCalls: 4,
		},
		{
			name:      "lost race in transaction",
			mutate:    func(r *stubRepo) { r.orderErr = apperror.ErrSeatAlreadyReserved.WithSeats("s1") },
			wantErr:   apperror.ErrSeatAlreadyReserved,
			wantCalls: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newBookableRepo()
			tt.mutate(repo)
			svc := NewService(repo, nil, nil, nil)

			_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
				UserID: "u1", EventID: "e1", EventDateID: "d1", SeatIDs: []string{"s1", "s2"},
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if len(repo.calls) != tt.wantCalls {
				t.Fatalf("calls = %v, want %d calls", repo.calls, tt.wantCalls)
			}
		})
	}
}

func TestCreateOrder_MissingSeatsAreListed(t *testing.T) {
	repo := newBookableRepo()
	repo.seats = repo.seats[:1]
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID: "u1", EventID: "e1", EventDateID: "d1", SeatIDs: []string{"s1", "s2", "s9"},
	})

	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.Error, got %v", err)
	}
	if !slices.Equal(appErr.SeatIDs, []string{"s2", "s9"}) {
		t.Fatalf("SeatIDs = %v, want [s2 s9]", appErr.SeatIDs)
	}
}

func TestCreateOrder_RejectsBadSeatList(t *testing.T) {
	for _, seats := range [][]string{nil, {"s1", "s1"}} {
		repo := newBookableRepo()
		svc := NewService(repo, nil, nil, nil)

		_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
			UserID: "u1", EventID: "e1", EventDateID: "d1", SeatIDs: seats,
		})
		if !errors.Is(err, apperror.ErrValidation) {
			t.Fatalf("seats %v: error = %v, want validation", seats, err)
		}
		if len(repo.calls) != 0 {
			t.Fatalf("seats %v: repository must not be called, got %v", seats, repo.calls)
		}
	}
}

type stubCatalog struct {
	called bool
	date   *model.EventDate
}

func (c *stubCatalog) GetEventDate(ctx context.Context, eventDateID, eventID string) (*model.EventDate, error) {
	c.called = true
	return c.date, nil
}

func TestCreateOrder_UsesCatalog(t *testing.T) {
	repo := newBookableRepo()
	catalog := &stubCatalog{date: repo.date}
	svc := NewService(repo, catalog, nil, nil)

	if _, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID: "u1", EventID: "e1", EventDateID: "d1", SeatIDs: []string{"s1", "s2"},
	}); err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if !catalog.called {
		t.Fatalf("catalog must serve event dates")
	}
	if slices.Contains(repo.calls, "GetEventDate") {
		t.Fatalf("repository must not be asked for event date when catalog is set")
	}
}

func TestCreatePayment_Validation(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, nil)

	_, err := svc.CreatePayment(context.Background(), model.NewPayment{
		OrderID: "o1", UserID: "u1", Method: "cash",
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.CreatePayment(context.Background(), model.NewPayment{
		OrderID: "o1", UserID: "u1", Method: model.PaymentMethodCreditCard, Amount: -1,
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("expected validation error for negative amount, got %v", err)
	}
}

func TestCreatePayment_ReturnsSummaryWithPoint(t *testing.T) {
	repo := &stubRepo{
		user: &model.User{ID: "u1", Point: 100000},
		payment: &model.Payment{
			ID: "p1", OrderID: "o1", Amount: 30000,
			Method: model.PaymentMethodCreditCard, Status: model.PaymentStatusPending,
		},
	}
	svc := NewService(repo, nil, nil, nil)

	summary, err := svc.CreatePayment(context.Background(), model.NewPayment{
		OrderID: "o1", UserID: "u1", Method: model.PaymentMethodCreditCard,
	})
	if err != nil {
		t.Fatalf("CreatePayment error: %v", err)
	}
	if summary.Point != 100000 || summary.Status != model.PaymentStatusPending || summary.Amount != 30000 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestCreatePayment_PropagatesExisting(t *testing.T) {
	repo := &stubRepo{
		user:       &model.User{ID: "u1"},
		paymentErr: apperror.ErrExistingPayment,
	}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.CreatePayment(context.Background(), model.NewPayment{
		OrderID: "o1", UserID: "u1", Method: model.PaymentMethodPaypal,
	})
	if !errors.Is(err, apperror.ErrExistingPayment) {
		t.Fatalf("expected ErrExistingPayment, got %v", err)
	}
}

func TestUpdatePayment(t *testing.T) {
	paidAt := time.Now()
	repo := &stubRepo{
		user: &model.User{ID: "u1", Point: 100000},
		payment: &model.Payment{
			ID: "p1", OrderID: "o1", Amount: 30000,
			Status: model.PaymentStatusCompleted, PaidAt: &paidAt,
		},
		point: 70000,
	}
	svc := NewService(repo, nil, nil, nil)

	summary, err := svc.UpdatePayment(context.Background(), model.PaymentUpdate{
		OrderID: "o1", PaymentID: "p1", UserID: "u1", Status: model.PaymentStatusCompleted,
	})
	if err != nil {
		t.Fatalf("UpdatePayment error: %v", err)
	}
	if summary.Point != 70000 || summary.PaidAt == nil {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	_, err = svc.UpdatePayment(context.Background(), model.PaymentUpdate{
		OrderID: "o1", PaymentID: "p1", UserID: "u1", Status: "refunded",
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestUpdatePayment_InsufficientBalance(t *testing.T) {
	repo := &stubRepo{
		user:       &model.User{ID: "u1", Point: 10},
		paymentErr: apperror.ErrInsufficientBalance,
	}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.UpdatePayment(context.Background(), model.PaymentUpdate{
		OrderID: "o1", PaymentID: "p1", UserID: "u1", Status: model.PaymentStatusCompleted,
	})
	if !errors.Is(err, apperror.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestCancelOrder_PassThrough(t *testing.T) {
	repo := &stubRepo{cancelErr: apperror.ErrAlreadyCanceled}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.CancelOrder(context.Background(), "o1", "u1")
	if !errors.Is(err, apperror.ErrAlreadyCanceled) {
		t.Fatalf("expected ErrAlreadyCanceled, got %v", err)
	}
}

func TestGetBalance(t *testing.T) {
	repo := &stubRepo{user: &model.User{ID: "u1", Nickname: "neo", Point: 500000}}
	svc := NewService(repo, nil, nil, nil)

	info, err := svc.GetBalance(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetBalance error: %v", err)
	}
	if info.Point != 500000 {
		t.Fatalf("Point = %d, want 500000", info.Point)
	}
}
