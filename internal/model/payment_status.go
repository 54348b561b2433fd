package model

// PaymentStatus описывает состояние платежа.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCanceled  PaymentStatus = "canceled"
)

// Valid проверяет, что статус известен.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCanceled:
		return true
	}
	return false
}

// Active сообщает, занимает ли платёж единственный слот активного платежа заказа.
// Отменённый и неуспешный платежи слот освобождают: после failed заказ можно оплатить заново.
func (s PaymentStatus) Active() bool {
	return s == PaymentStatusPending || s == PaymentStatusCompleted
}

// CanTransition проверяет допустимость перехода.
// Из pending можно перейти в completed, failed или canceled; остальные статусы конечные.
func CanTransition(from, to PaymentStatus) bool {
	if from != PaymentStatusPending {
		return false
	}
	switch to {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCanceled:
		return true
	}
	return false
}

// PaymentEventType возвращает тип события outbox для перехода платежа в статус s.
func PaymentEventType(s PaymentStatus) string {
	switch s {
	case PaymentStatusCompleted:
		return EventPaymentCompleted
	case PaymentStatusFailed:
		return EventPaymentFailed
	case PaymentStatusCanceled:
		return EventPaymentCanceled
	default:
		return EventPaymentCreated
	}
}
