package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler, events *EventHub) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/escrow", func(r chi.Router) {
		r.Post("/payments", handler.OpenPayment)
		r.Get("/payments", handler.ListPayments)
		r.Get("/payments/{paymentId}", handler.GetPayment)
		r.Post("/payments/{paymentId}/confirm", handler.ConfirmPayment)
		r.Post("/payments/{paymentId}/confirm-work", handler.ConfirmWork)
		r.Post("/payments/{paymentId}/approve", handler.ApproveWork)
		r.Post("/payments/{paymentId}/dispute", handler.OpenDispute)
		r.Post("/payments/{paymentId}/cancel", handler.CancelPayment)
		r.Post("/payments/{paymentId}/resolve", handler.ResolveDispute)
		if events != nil {
			r.Get("/events", events.HandleEvents)
		}
	})

	return &Server{Router: r}
}
