// Package handler содержит HTTP-обработчики API сервиса бронирования.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/ticket-booking/internal/apperror"
	"github.com/mmeshcher/ticket-booking/internal/middleware"
	"github.com/mmeshcher/ticket-booking/internal/model"
	"github.com/mmeshcher/ticket-booking/internal/service"
	"github.com/mmeshcher/ticket-booking/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*model.OrderSummary, error)
	CancelOrder(ctx context.Context, orderID, userID string) (*model.CancelResult, error)
	FindOrders(ctx context.Context, userID, eventID string) ([]model.OrderDetail, error)
	FindOrder(ctx context.Context, orderID, userID string) (*model.OrderDetail, error)
	CreatePayment(ctx context.Context, in model.NewPayment) (*model.PaymentSummary, error)
	UpdatePayment(ctx context.Context, in model.PaymentUpdate) (*model.PaymentSummary, error)
	GetBalance(ctx context.Context, userID string) (*model.UserInfo, error)
}

// Pinger проверяет доступность хранилища для /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler реализует HTTP-обработчики API сервиса бронирования.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	pinger         Pinger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов. pinger может быть nil.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, pinger Pinger) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		pinger:         pinger,
	}
}

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type errorResponse struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	SeatIDs []string `json:"seatIds,omitempty"`
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Code: 0, Message: "Success", Data: data}); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.From(err)
	if appErr.Kind == apperror.KindInternal {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		SeatIDs: appErr.SeatIDs,
	})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ErrValidation
	}
	return validation.Struct(dst)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apperror.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

type createOrderRequest struct {
	EventID     string   `json:"eventId" validate:"required,uuid"`
	EventDateID string   `json:"eventDateId" validate:"required,uuid"`
	SeatIDs     []string `json:"seatIds" validate:"required,min=1,unique,dive,uuid"`
}

// CreateOrder бронирует выбранные места на дату мероприятия.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.service.CreateOrder(r.Context(), service.CreateOrderInput{
		UserID:      userID,
		EventID:     req.EventID,
		EventDateID: req.EventDateID,
		SeatIDs:     req.SeatIDs,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeData(w, http.StatusCreated, summary)
}

// GetOrders возвращает заказы текущего пользователя, опционально по событию eventId.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	eventID := r.URL.Query().Get("eventId")
	if eventID != "" {
		if err := validation.ID(eventID); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	orders, err := h.service.FindOrders(r.Context(), userID, eventID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeData(w, http.StatusOK, orders)
}

// GetOrder возвращает заказ текущего пользователя.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	orderID := chi.URLParam(r, "orderID")
	if err := validation.ID(orderID); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.service.FindOrder(r.Context(), orderID, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeData(w, http.StatusOK, order)
}

type cancelResponse struct {
	OrderID    string    `json:"orderId"`
	CanceledAt time.Time `json:"canceledAt"`
	Refund     int64     `json:"refund"`
	Refunded   bool      `json:"refunded"`
}

// CancelOrder отменяет заказ текущего пользователя.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	orderID := chi.URLParam(r, "orderID")
	if err := validation.ID(orderID); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.service.CancelOrder(r.Context(), orderID, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeData(w, http.StatusOK, cancelResponse{
		OrderID:    res.OrderID,
		CanceledAt: res.CanceledAt,
		Refund:     res.Refund,
		Refunded:   res.Refunded,
	})
}

type createPaymentRequest struct {
	OrderID string `json:"orderId" validate:"required,uuid"`
	Method  string `json:"method" validate:"required,payment_method"`
	Amount  int64  `json:"amount" validate:"gte=0"`
}

// CreatePayment создаёт платёж по заказу.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req createPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.service.CreatePayment(r.Context(), model.NewPayment{
		OrderID: req.OrderID,
		UserID:  userID,
		Method:  model.PaymentMethod(req.Method),
		Amount:  req.Amount,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeData(w, http.StatusCreated, summary)
}

type updatePaymentRequest struct {
	OrderID string `json:"orderId" validate:"required,uuid"`
	Status  string `json:"status" validate:"required,payment_status"`
}

// UpdatePayment меняет статус платежа.
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	paymentID := chi.URLParam(r, "paymentID")
	if err := validation.ID(paymentID); err != nil {
		h.writeError(w, r, err)
		return
	}

	var req updatePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.service.UpdatePayment(r.Context(), model.PaymentUpdate{
		OrderID:   req.OrderID,
		PaymentID: paymentID,
		UserID:    userID,
		Status:    model.PaymentStatus(req.Status),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeData(w, http.StatusOK, summary)
}

// GetBalance возвращает баланс баллов текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	info, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeData(w, http.StatusOK, info)
}

// Health проверяет доступность базы данных.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			h.writeError(w, r, errors.Join(apperror.ErrUnavailable, err))
			return
		}
	}

	h.writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
