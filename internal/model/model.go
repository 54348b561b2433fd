// Package model содержит доменные сущности сервиса бронирования мест.
package model

import "time"

// DefaultPoint — стартовый баланс баллов нового пользователя.
const DefaultPoint int64 = 500000

// User представляет пользователя с баллами, которыми оплачиваются заказы.
type User struct {
	ID       string
	Nickname string
	Email    string
	Role     string
	Point    int64
}

// Event описывает мероприятие каталога.
type Event struct {
	ID                 string
	Title              string
	Thumbnail          string
	Place              string
	Cast               string
	AgeLimit           *int
	TicketingStartTime *time.Time
}

// EventDate — конкретная дата проведения мероприятия. Бронь мест всегда привязана к ней.
type EventDate struct {
	ID    string
	Date  time.Time
	Event Event
}

// Area описывает ценовую зону зала.
type Area struct {
	ID    string
	Label string
	Price int64
}

// Seat — место в зоне. Cx и Cy используются только для отрисовки схемы.
type Seat struct {
	ID     string
	Cx     int
	Cy     int
	Row    int
	Number int
	Area   Area
}

// Order объединяет брони, созданные одним запросом пользователя.
type Order struct {
	ID           string
	UserID       string
	EventDateID  string
	Reservations []Reservation
	CanceledAt   *time.Time
	CreatedAt    time.Time
}

// Reservation связывает место, дату мероприятия и заказ.
type Reservation struct {
	ID          string
	OrderID     string
	SeatID      string
	EventDateID string
	CanceledAt  *time.Time
}

// PaymentMethod задаёт способ оплаты.
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodPaypal       PaymentMethod = "paypal"
	PaymentMethodSocketPay    PaymentMethod = "socket_pay"
)

// Valid проверяет, что способ оплаты известен.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodCreditCard, PaymentMethodPaypal, PaymentMethodSocketPay:
		return true
	}
	return false
}

// Payment хранит попытку оплаты заказа.
type Payment struct {
	ID        string
	OrderID   string
	Amount    int64
	Method    PaymentMethod
	Status    PaymentStatus
	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder содержит данные для записи заказа вместе с бронями.
type NewOrder struct {
	UserID      string
	EventDateID string
	SeatIDs     []string
}

// NewPayment — входные данные для создания платежа.
type NewPayment struct {
	OrderID string
	UserID  string
	Method  PaymentMethod
	Amount  int64
}

type PaymentUpdate struct {
	OrderID   string
	PaymentID string
	UserID    string
	Status    PaymentStatus
}

// CancelResult описывает результат отмены заказа.
type CancelResult struct {
	OrderID    string
	CanceledAt time.Time
	Refund     int64
	Refunded   bool
}

// Event types written to the outbox.
const (
	EventOrderCreated     = "order.created"
	EventOrderCanceled    = "order.canceled"
	EventPaymentCreated   = "payment.created"
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentCanceled  = "payment.canceled"
)

// BookingEvent — событие бронирования, публикуемое во внешний брокер через outbox.
type BookingEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	PaymentID  string    `json:"paymentId,omitempty"`
	SeatIDs    []string  `json:"seatIds,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
