// Package apperror описывает стабильные коды ошибок сервиса бронирования.
package apperror

import (
	"errors"
	"net/http"
	"slices"
)

// Kind классифицирует ошибку по её природе.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindInternal   Kind = "internal"
)

// Error содержит код ошибки, сообщение для клиента и HTTP-статус.
// SeatIDs заполняется для ошибок, связанных с конкретными местами.
type Error struct {
	Kind       Kind
	Code       int
	Message    string
	HTTPStatus int
	SeatIDs    []string
}

func (e *Error) Error() string {
	return e.Message
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал и для копий с местами.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithSeats возвращает копию ошибки с перечнем мест.
func (e *Error) WithSeats(ids ...string) *Error {
	cp := *e
	cp.SeatIDs = slices.Clone(ids)
	return &cp
}

func newError(kind Kind, code int, msg string, status int) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, HTTPStatus: status}
}

var (
	ErrUnavailable  = newError(KindInternal, 3, "Not currently available", http.StatusServiceUnavailable)
	ErrValidation   = newError(KindValidation, 5, "Validation failed", http.StatusBadRequest)
	ErrInternal     = newError(KindInternal, 6, "Internal server error", http.StatusInternalServerError)
	ErrUserNotFound = newError(KindNotFound, 7, "User not found", http.StatusNotFound)
	ErrUnauthorized = newError(KindAuth, 8, "Unauthorized", http.StatusUnauthorized)
	ErrSeatNotFound = newError(KindNotFound, 11, "Seat not found for the specified event", http.StatusNotFound)
	// ErrEventDateNotFound возвращается, если дата не найдена или относится к другому событию.
	ErrEventDateNotFound = newError(KindNotFound, 12, "Event date not found for the specified event", http.StatusNotFound)
	// ErrSeatAlreadyReserved возвращается, если хотя бы одно место уже занято на выбранную дату.
	ErrSeatAlreadyReserved = newError(KindConflict, 13, "This seat is already reserved for the selected event date", http.StatusConflict)
	ErrOrderNotFound       = newError(KindNotFound, 15, "Order not found", http.StatusNotFound)
	ErrPaymentNotFound     = newError(KindNotFound, 18, "Payment not found", http.StatusNotFound)
	// ErrExistingPayment возвращается, если у заказа уже есть неотменённый платёж.
	ErrExistingPayment       = newError(KindConflict, 19, "This payment is already pending or completed for the order", http.StatusConflict)
	ErrAlreadyCanceled       = newError(KindConflict, 20, "The order is already canceled", http.StatusConflict)
	ErrInsufficientBalance   = newError(KindConflict, 21, "Insufficient point balance", http.StatusConflict)
	ErrInvalidTransition     = newError(KindConflict, 22, "Invalid payment status transition", http.StatusConflict)
	ErrPaymentAmountMismatch = newError(KindConflict, 23, "Payment amount does not match the order total", http.StatusConflict)
	// ErrOrderIntegrity возвращается, если у заказа нет ни одной брони.
	ErrOrderIntegrity = newError(KindInternal, 24, "Order has no reservations", http.StatusInternalServerError)
	ErrRouteNotFound  = newError(KindNotFound, 25, "Resource not found", http.StatusNotFound)
)

// From извлекает *Error из цепочки ошибок. Неизвестные ошибки превращаются в ErrInternal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal
}
