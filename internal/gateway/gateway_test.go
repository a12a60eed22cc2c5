package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"filebot/internal/auth"
	"filebot/internal/bot"
	"filebot/internal/config"
	"filebot/internal/intent"
	"filebot/internal/models"
	"filebot/internal/payments"
	"filebot/internal/store"
	"filebot/internal/websocket"
)

const testAdminID = int64(99)

type stubBot struct {
	events []intent.Event
	out    []bot.Notification
	err    error
}

func (s *stubBot) Handle(ctx context.Context, event intent.Event) ([]bot.Notification, error) {
	s.events = append(s.events, event)
	return s.out, s.err
}

type stubPayments struct {
	outcome payments.Outcome
	pending []models.PendingPayment
	decided []payments.Decision
}

func (s *stubPayments) Decide(ctx context.Context, paymentID, adminID int64, decision payments.Decision) (payments.Outcome, error) {
	s.decided = append(s.decided, decision)
	return s.outcome, nil
}

func (s *stubPayments) ListPending(ctx context.Context) ([]models.PendingPayment, error) {
	return s.pending, nil
}

func (s *stubPayments) CountPending(ctx context.Context) (int, error) {
	return len(s.pending), nil
}

type stubLedger struct {
	user models.User
	err  error
}

func (s *stubLedger) GetUser(ctx context.Context, userID int64) (models.User, error) {
	if s.err != nil {
		return models.User{}, s.err
	}
	return s.user, nil
}

type stubUsers struct{}

func (stubUsers) Count(ctx context.Context) (int, error) { return 12, nil }

func (stubUsers) CounterTotals(ctx context.Context) (store.CounterTotals, error) {
	return store.CounterTotals{Successful: 40, Failed: 3}, nil
}

type stubConversions struct{}

func (stubConversions) ListByUser(ctx context.Context, userID int64, limit int) ([]models.ConversionRecord, error) {
	return nil, nil
}

func (stubConversions) CountSince(ctx context.Context, since time.Time) (int, error) {
	return 7, nil
}

func (stubConversions) TopTargetFormats(ctx context.Context, limit int) ([]store.FormatCount, error) {
	return []store.FormatCount{{TargetFormat: "PDF", Count: 20}}, nil
}

type stubActivity struct{}

func (stubActivity) CountActiveUsersSince(ctx context.Context, since time.Time) (int, error) {
	return 4, nil
}

func testConfig(t *testing.T, password string) config.Config {
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return config.Config{
		JWTSecret:         "test-secret",
		TokenTTL:          time.Minute,
		AllowedOrigins:    "*",
		AdminID:           testAdminID,
		AdminPasswordHash: hash,
	}
}

func newServer(t *testing.T, b *stubBot, pay *stubPayments, ledger *stubLedger) http.Handler {
	if b == nil {
		b = &stubBot{}
	}
	if pay == nil {
		pay = &stubPayments{}
	}
	if ledger == nil {
		ledger = &stubLedger{}
	}
	handler := New(testConfig(t, "correct horse"), b, pay, ledger,
		stubUsers{}, stubConversions{}, stubActivity{}, websocket.NewHub())
	return handler.Routes()
}

func adminToken(t *testing.T) string {
	token, err := auth.GenerateToken("test-secret", testAdminID, time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func TestEventsEndpoint(t *testing.T) {
	b := &stubBot{out: []bot.Notification{{ChatID: 42, Text: "hi"}}}
	server := newServer(t, b, nil, nil)

	body := []byte(`{"type":"start","payload":{"user":{"id":42,"first_name":"Ada"}}}`)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(b.events) != 1 {
		t.Fatalf("expected one handled event, got %d", len(b.events))
	}
	if _, ok := b.events[0].(intent.Start); !ok {
		t.Fatalf("unexpected event type %T", b.events[0])
	}
	var resp struct {
		Notifications []bot.Notification `json:"notifications"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Notifications) != 1 || resp.Notifications[0].Text != "hi" {
		t.Fatalf("unexpected notifications: %#v", resp.Notifications)
	}
}

func TestEventsUnknownType(t *testing.T) {
	server := newServer(t, nil, nil, nil)
	body := []byte(`{"type":"teleport","payload":{}}`)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminLogin(t *testing.T) {
	server := newServer(t, nil, nil, nil)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/login",
		bytes.NewReader([]byte(`{"password":"wrong password"}`))))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/login",
		bytes.NewReader([]byte(`{"password":"correct horse"}`))))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("expected a token: %v %s", err, rec.Body.String())
	}
	claims, err := auth.ParseToken("test-secret", resp.Token)
	if err != nil || claims.AdminID != testAdminID {
		t.Fatalf("unexpected claims: %#v %v", claims, err)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	server := newServer(t, nil, nil, nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/payments/pending", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestApprovePayment(t *testing.T) {
	pay := &stubPayments{outcome: payments.Outcome{
		Applied:    true,
		NewBalance: 25,
		Payment:    models.PendingPayment{ID: 7, UserID: 42, Status: models.PaymentStatusApproved},
	}}
	server := newServer(t, nil, pay, nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/payments/7/approve", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(pay.decided) != 1 || pay.decided[0] != payments.DecisionApprove {
		t.Fatalf("unexpected decisions: %#v", pay.decided)
	}
}

func TestApproveDecidedPaymentConflicts(t *testing.T) {
	pay := &stubPayments{outcome: payments.Outcome{
		Reason:  payments.ReasonNotPending,
		Payment: models.PendingPayment{ID: 7, Status: models.PaymentStatusRejected},
	}}
	server := newServer(t, nil, pay, nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/payments/7/approve", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestApproveUnknownPayment(t *testing.T) {
	pay := &stubPayments{outcome: payments.Outcome{Reason: payments.ReasonNotFound}}
	server := newServer(t, nil, pay, nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/payments/404/approve", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAdminStats(t *testing.T) {
	server := newServer(t, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["users"] != float64(12) || resp["pending_payments"] != float64(0) {
		t.Fatalf("unexpected stats: %#v", resp)
	}
}

func TestHealth(t *testing.T) {
	server := newServer(t, nil, nil, nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
