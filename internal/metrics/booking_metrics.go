// Package metrics содержит prometheus-метрики сервиса бронирования.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmeshcher/ticket-booking/internal/apperror"
)

// Результаты операций в метке result.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultConflict = "conflict"
	ResultInvalid  = "validation"
	ResultError    = "error"
)

// BookingMetrics содержит метрики операций бронирования.
// Нулевой указатель допустим: все методы становятся no-op.
type BookingMetrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	seatConflicts prometheus.Counter
	relayed       *prometheus.CounterVec
	relayFailures prometheus.Counter
}

// NewBookingMetrics регистрирует метрики в стандартном реестре.
func NewBookingMetrics() *BookingMetrics {
	return NewBookingMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewBookingMetricsWithRegisterer регистрирует метрики в указанном реестре.
func NewBookingMetricsWithRegisterer(registerer prometheus.Registerer) *BookingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &BookingMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "booking_operations_total",
			Help: "Total number of booking operations by result",
		}, []string{"operation", "result"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "booking_operation_duration_seconds",
			Help:    "Duration of booking operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		seatConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "booking_seat_conflicts_total",
			Help: "Total number of order attempts rejected because a seat was already reserved",
		}),
		relayed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "booking_events_relayed_total",
			Help: "Total number of outbox events published to the broker",
		}, []string{"type"}),
		relayFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "booking_events_relay_failures_total",
			Help: "Total number of failed outbox publish attempts",
		}),
	}
}

// ObserveOperation учитывает завершённую операцию, её результат и длительность.
func (m *BookingMetrics) ObserveOperation(op string, err error, d time.Duration) {
	if m == nil {
		return
	}

	m.operations.WithLabelValues(op, Result(err)).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())

	if errors.Is(err, apperror.ErrSeatAlreadyReserved) {
		m.seatConflicts.Inc()
	}
}

// EventRelayed учитывает опубликованное событие.
func (m *BookingMetrics) EventRelayed(eventType string) {
	if m == nil {
		return
	}
	m.relayed.WithLabelValues(eventType).Inc()
}

// RelayFailed учитывает неудачную попытку публикации.
func (m *BookingMetrics) RelayFailed() {
	if m == nil {
		return
	}
	m.relayFailures.Inc()
}

// Result возвращает значение метки result для ошибки операции.
func Result(err error) string {
	if err == nil {
		return ResultOK
	}

	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		return ResultError
	}

	switch appErr.Kind {
	case apperror.KindNotFound:
		return ResultNotFound
	case apperror.KindConflict:
		return ResultConflict
	case apperror.KindValidation, apperror.KindAuth:
		return ResultInvalid
	default:
		return ResultError
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}
