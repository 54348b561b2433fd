package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmeshcher/ticket-booking/internal/apperror"
	custommiddleware "github.com/mmeshcher/ticket-booking/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса бронирования.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger))

	// promhttp сам сжимает ответ по Accept-Encoding
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(custommiddleware.GzipMiddleware)

		r.Get("/health", h.Health)

		r.Route("/api", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.CreateOrder)
				r.Get("/", h.GetOrders)
				r.Get("/{orderID}", h.GetOrder)
				r.Post("/{orderID}/cancel", h.CancelOrder)
			})

			r.Post("/payments", h.CreatePayment)
			r.Patch("/payments/{paymentID}", h.UpdatePayment)

			r.Get("/users/me/point", h.GetBalance)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, apperror.ErrRouteNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
