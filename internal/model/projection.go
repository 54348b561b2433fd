package model

import "time"

// UserInfo — данные пользователя в ответах API.
type UserInfo struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Point    int64  `json:"point"`
}

// EventSummary содержит краткие данные мероприятия.
type EventSummary struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Thumbnail          string     `json:"thumbnail,omitempty"`
	Place              string     `json:"place"`
	Cast               string     `json:"cast"`
	AgeLimit           *int       `json:"ageLimit,omitempty"`
	TicketingStartTime *time.Time `json:"ticketingStartTime,omitempty"`
}

// ReservationSummary — одно забронированное место в составе заказа.
type ReservationSummary struct {
	ID        string `json:"id"`
	SeatID    string `json:"seatId"`
	Row       int    `json:"row"`
	Number    int    `json:"number"`
	AreaLabel string `json:"areaLabel"`
	Price     int64  `json:"price"`
}

// OrderSummary возвращается при создании заказа.
type OrderSummary struct {
	ID           string               `json:"id"`
	CreatedAt    time.Time            `json:"createdAt"`
	TotalAmount  int64                `json:"totalAmount"`
	User         UserInfo             `json:"user"`
	Event        EventSummary         `json:"event"`
	EventDate    time.Time            `json:"eventDate"`
	Reservations []ReservationSummary `json:"reservations"`
}

// PaymentSummary — ответ на создание и изменение платежа.
type PaymentSummary struct {
	ID        string        `json:"id"`
	OrderID   string        `json:"orderId"`
	Amount    int64         `json:"amount"`
	Method    PaymentMethod `json:"method"`
	Status    PaymentStatus `json:"status"`
	PaidAt    *time.Time    `json:"paidAt"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Point     int64         `json:"point"`
}

// NewPaymentSummary собирает ответ по платежу и текущему балансу пользователя.
func NewPaymentSummary(p *Payment, point int64) *PaymentSummary {
	return &PaymentSummary{
		ID:        p.ID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
		Method:    p.Method,
		Status:    p.Status,
		PaidAt:    p.PaidAt,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Point:     point,
	}
}

// OrderDetail — заказ с перечнем мест для выдачи списком и по идентификатору.
type OrderDetail struct {
	ID           string               `json:"id"`
	CreatedAt    time.Time            `json:"createdAt"`
	CanceledAt   *time.Time           `json:"canceledAt"`
	User         UserInfo             `json:"user"`
	Event        EventSummary         `json:"event"`
	EventDateID  string               `json:"eventDateId"`
	EventDate    time.Time            `json:"eventDate"`
	TotalAmount  int64                `json:"totalAmount"`
	Reservations []ReservationSummary `json:"reservations"`
}

// OrderRow — строка результата соединения order × user × reservation × event_date × event × seat × area.
// Reservation равен nil, если у заказа не осталось ни одной брони.
type OrderRow struct {
	OrderID         string
	OrderCreatedAt  time.Time
	OrderCanceledAt *time.Time
	User            UserInfo
	Event           EventSummary
	EventDateID     string
	EventDate       time.Time
	Reservation     *ReservationSummary
}

// GroupOrderRows сворачивает строки соединения в заказы: один заголовок и N мест на заказ.
// Порядок заказов совпадает с порядком первого появления в rows.
func GroupOrderRows(rows []OrderRow) []OrderDetail {
	index := make(map[string]int, len(rows))
	res := make([]OrderDetail, 0)

	for _, row := range rows {
		i, ok := index[row.OrderID]
		if !ok {
			res = append(res, OrderDetail{
				ID:           row.OrderID,
				CreatedAt:    row.OrderCreatedAt,
				CanceledAt:   row.OrderCanceledAt,
				User:         row.User,
				Event:        row.Event,
				EventDateID:  row.EventDateID,
				EventDate:    row.EventDate,
				Reservations: []ReservationSummary{},
			})
			i = len(res) - 1
			index[row.OrderID] = i
		}

		if row.Reservation == nil {
			continue
		}

		res[i].Reservations = append(res[i].Reservations, *row.Reservation)
		res[i].TotalAmount += row.Reservation.Price
	}

	return res
}
