package gateway

import (
	"net/http"

	"filebot/internal/config"
	"filebot/internal/middleware"
	"filebot/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg         config.Config
	bot         EventHandler
	payments    PaymentService
	ledger      Ledger
	users       UserDirectory
	conversions ConversionLog
	activity    ActivityLog
	hub         *websocket.Hub
}

func New(cfg config.Config, bot EventHandler, payments PaymentService, ledger Ledger,
	users UserDirectory, conversions ConversionLog, activity ActivityLog, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:         cfg,
		bot:         bot,
		payments:    payments,
		ledger:      ledger,
		users:       users,
		conversions: conversions,
		activity:    activity,
		hub:         hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Post("/events", h.Events)

	router.Route("/admin", func(r chi.Router) {
		r.Post("/login", h.AdminLogin)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(h.cfg.JWTSecret))
			r.Use(middleware.RequireAdmin(h.cfg.AdminID))
			r.Get("/payments/pending", h.ListPendingPayments)
			r.Post("/payments/{id}/approve", h.ApprovePayment)
			r.Post("/payments/{id}/reject", h.RejectPayment)
			r.Get("/users/{id}", h.GetUser)
			r.Get("/stats", h.Stats)
		})
	})

	router.Get("/ws/balances", h.WSBalances)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWS(w, r, h.hub)
}
