// Package gateway is the HTTP surface: the chat transport posts events to
// it, and the admin panel drives the payment queue and stats over REST.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"filebot/internal/bot"
	"filebot/internal/intent"
	"filebot/internal/models"
	"filebot/internal/payments"
	"filebot/internal/store"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type EventHandler interface {
	Handle(ctx context.Context, event intent.Event) ([]bot.Notification, error)
}

type PaymentService interface {
	Decide(ctx context.Context, paymentID, adminID int64, decision payments.Decision) (payments.Outcome, error)
	ListPending(ctx context.Context) ([]models.PendingPayment, error)
	CountPending(ctx context.Context) (int, error)
}

type Ledger interface {
	GetUser(ctx context.Context, userID int64) (models.User, error)
}

type UserDirectory interface {
	Count(ctx context.Context) (int, error)
	CounterTotals(ctx context.Context) (store.CounterTotals, error)
}

type ConversionLog interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.ConversionRecord, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	TopTargetFormats(ctx context.Context, limit int) ([]store.FormatCount, error)
}

type ActivityLog interface {
	CountActiveUsersSince(ctx context.Context, since time.Time) (int, error)
}
