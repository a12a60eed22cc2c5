// Package bot maps chat events to the services behind them and shapes the
// replies. It owns no business rules: balances, charging and payment
// decisions all live in the services it calls.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"filebot/internal/catalog"
	"filebot/internal/convert"
	"filebot/internal/db"
	"filebot/internal/files"
	"filebot/internal/intent"
	"filebot/internal/models"
	"filebot/internal/money"
	"filebot/internal/payments"
	"filebot/internal/store"

	"github.com/jmoiron/sqlx"
)

// Notification is one outbound chat message. DocumentPath, when set, is an
// artifact to deliver; the transport removes it after sending.
type Notification struct {
	ChatID       int64    `json:"chat_id"`
	Text         string   `json:"text"`
	Buttons      []Button `json:"buttons,omitempty"`
	DocumentPath string   `json:"document_path,omitempty"`
	DocumentName string   `json:"document_name,omitempty"`
}

// Button carries the typed event its press will send back.
type Button struct {
	Label string
	Event intent.Event
}

// MarshalJSON emits the event as its tagged envelope so the transport can
// feed a button press straight back into the event endpoint.
func (b Button) MarshalJSON() ([]byte, error) {
	event, err := intent.Encode(b.Event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Label string          `json:"label"`
		Event json.RawMessage `json:"event"`
	}{Label: b.Label, Event: event})
}

type Ledger interface {
	RegisterOrTouch(ctx context.Context, profile store.UserProfile) (models.User, error)
	GetBalance(ctx context.Context, userID int64) (int, error)
	GetUser(ctx context.Context, userID int64) (models.User, error)
}

type Payments interface {
	Submit(ctx context.Context, profile store.UserProfile, packageID string) (int64, error)
	Decide(ctx context.Context, paymentID, adminID int64, decision payments.Decision) (payments.Outcome, error)
	CountPending(ctx context.Context) (int, error)
}

type Converter interface {
	Run(ctx context.Context, req convert.Request) (convert.Result, error)
}

// FileFetcher downloads the uploaded document from the chat platform.
type FileFetcher interface {
	Fetch(ctx context.Context, fileID, destPath string) error
}

type UserDirectory interface {
	Count(ctx context.Context) (int, error)
	CounterTotals(ctx context.Context) (store.CounterTotals, error)
}

type ConversionLog interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.ConversionRecord, error)
	CountByUserSince(ctx context.Context, userID int64, since time.Time) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	TopTargetFormats(ctx context.Context, limit int) ([]store.FormatCount, error)
}

type ActivityLog interface {
	Log(ctx context.Context, tx store.Execer, userID int64, activityType, details string) error
	CountActiveUsersSince(ctx context.Context, since time.Time) (int, error)
}

type Config struct {
	AdminID     int64
	MaxFileSize int64
	TempDir     string
}

// session tracks the document a user uploaded and has not converted yet.
type session struct {
	FileID   string
	FileName string
	FileSize int64
	Source   convert.Format
}

type Handler struct {
	cfg         Config
	txRunner    db.TxRunner
	ledger      Ledger
	payments    Payments
	converter   Converter
	fetcher     FileFetcher
	users       UserDirectory
	conversions ConversionLog
	activity    ActivityLog
	catalog     *catalog.Catalog

	mu       sync.Mutex
	sessions map[int64]session
}

func New(cfg Config, txRunner db.TxRunner, ledger Ledger, pay Payments, converter Converter,
	fetcher FileFetcher, users UserDirectory, conversions ConversionLog, activity ActivityLog,
	cat *catalog.Catalog) *Handler {
	return &Handler{
		cfg:         cfg,
		txRunner:    txRunner,
		ledger:      ledger,
		payments:    pay,
		converter:   converter,
		fetcher:     fetcher,
		users:       users,
		conversions: conversions,
		activity:    activity,
		catalog:     cat,
		sessions:    make(map[int64]session),
	}
}

// Handle processes one event and returns every message it produced, user
// and admin side alike.
func (h *Handler) Handle(ctx context.Context, event intent.Event) ([]Notification, error) {
	switch e := event.(type) {
	case intent.Start:
		return h.handleStart(ctx, e)
	case intent.DocumentReceived:
		return h.handleDocument(ctx, e)
	case intent.ConversionChoice:
		return h.handleConversion(ctx, e)
	case intent.RightsQuery:
		return h.handleRightsQuery(ctx, e)
	case intent.UserStats:
		return h.handleUserStats(ctx, e)
	case intent.PackageBrowse:
		return h.handlePackageBrowse(ctx, e)
	case intent.PackageSelect:
		return h.handlePackageSelect(ctx, e)
	case intent.PaymentClaim:
		return h.handlePaymentClaim(ctx, e)
	case intent.AdminDecision:
		return h.handleAdminDecision(ctx, e)
	case intent.AdminQuery:
		return h.handleAdminQuery(ctx, e)
	case intent.AdminStats:
		return h.handleAdminStats(ctx, e)
	default:
		return nil, fmt.Errorf("unhandled event %T", event)
	}
}

func profileFromRef(u intent.UserRef) store.UserProfile {
	return store.UserProfile{
		UserID:    u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func (h *Handler) handleStart(ctx context.Context, e intent.Start) ([]Notification, error) {
	user, err := h.ledger.RegisterOrTouch(ctx, profileFromRef(e.User))
	if err != nil {
		return nil, err
	}
	name := e.User.FirstName
	if name == "" {
		name = "there"
	}
	return []Notification{{
		ChatID: e.User.ID,
		Text: fmt.Sprintf("Hi %s! Send me a document and I'll convert it.\n"+
			"You have %d conversion rights left.", name, user.RemainingRights),
		Buttons: []Button{
			{Label: "My rights", Event: intent.RightsQuery{User: e.User}},
			{Label: "Buy a package", Event: intent.PackageBrowse{User: e.User}},
		},
	}}, nil
}

func (h *Handler) handleDocument(ctx context.Context, e intent.DocumentReceived) ([]Notification, error) {
	if _, err := h.ledger.RegisterOrTouch(ctx, profileFromRef(e.User)); err != nil {
		return nil, err
	}
	if e.FileSize > h.cfg.MaxFileSize {
		return []Notification{{
			ChatID: e.User.ID,
			Text: fmt.Sprintf("That file is %s, the limit is %s.",
				files.HumanSize(e.FileSize), files.HumanSize(h.cfg.MaxFileSize)),
		}}, nil
	}
	source, ok := convert.FromExtension(filepath.Ext(e.FileName))
	if !ok {
		return []Notification{{
			ChatID: e.User.ID,
			Text:   "I can't read that file type. Send a PDF, Word, Excel, PowerPoint or image file.",
		}}, nil
	}

	h.mu.Lock()
	h.sessions[e.User.ID] = session{
		FileID:   e.FileID,
		FileName: e.FileName,
		FileSize: e.FileSize,
		Source:   source,
	}
	h.mu.Unlock()

	targets := convert.Targets(source)
	buttons := make([]Button, 0, len(targets))
	for _, target := range targets {
		buttons = append(buttons, Button{
			Label: string(target),
			Event: intent.ConversionChoice{User: e.User, Target: string(target)},
		})
	}
	return []Notification{{
		ChatID:  e.User.ID,
		Text:    fmt.Sprintf("Got %s (%s). Convert it to:", e.FileName, files.HumanSize(e.FileSize)),
		Buttons: buttons,
	}}, nil
}

func (h *Handler) handleConversion(ctx context.Context, e intent.ConversionChoice) ([]Notification, error) {
	h.mu.Lock()
	sess, ok := h.sessions[e.User.ID]
	h.mu.Unlock()
	if !ok {
		return []Notification{{
			ChatID: e.User.ID,
			Text:   "Send me a document first.",
		}}, nil
	}
	target, err := convert.ParseFormat(e.Target)
	if err != nil {
		return []Notification{{
			ChatID: e.User.ID,
			Text:   "I don't know that format.",
		}}, nil
	}

	ws, err := files.NewWorkspace(h.cfg.TempDir)
	if err != nil {
		return nil, err
	}
	inputPath := filepath.Join(ws.Dir, files.SafeName(sess.FileName))
	if err := h.fetcher.Fetch(ctx, sess.FileID, inputPath); err != nil {
		ws.Cleanup()
		return nil, fmt.Errorf("fetch document: %w", err)
	}

	result, err := h.converter.Run(ctx, convert.Request{
		UserID:       e.User.ID,
		FileName:     sess.FileName,
		FileSize:     sess.FileSize,
		InputPath:    inputPath,
		OutputDir:    ws.Dir,
		SourceFormat: sess.Source,
		TargetFormat: target,
	})
	switch {
	case errors.Is(err, convert.ErrOutOfRights):
		ws.Cleanup()
		return []Notification{{
			ChatID: e.User.ID,
			Text:   "You're out of conversion rights.",
			Buttons: []Button{
				{Label: "Buy a package", Event: intent.PackageBrowse{User: e.User}},
			},
		}}, nil
	case errors.Is(err, convert.ErrUnsupported):
		ws.Cleanup()
		return []Notification{{
			ChatID: e.User.ID,
			Text:   fmt.Sprintf("I can't convert %s to %s.", sess.Source, target),
		}}, nil
	case err != nil:
		ws.Cleanup()
		return []Notification{{
			ChatID: e.User.ID,
			Text:   "The conversion failed. That attempt was free, your balance is unchanged.",
		}}, nil
	}

	h.mu.Lock()
	delete(h.sessions, e.User.ID)
	h.mu.Unlock()

	return []Notification{{
		ChatID:       e.User.ID,
		Text:         fmt.Sprintf("Done in %dms. You have %d rights left.", result.DurationMS, result.Remaining),
		DocumentPath: result.OutputPath,
		DocumentName: result.OutputName,
	}}, nil
}

func (h *Handler) handleRightsQuery(ctx context.Context, e intent.RightsQuery) ([]Notification, error) {
	balance, err := h.ledger.GetBalance(ctx, e.User.ID)
	if err != nil {
		return nil, err
	}
	n := Notification{
		ChatID: e.User.ID,
		Text:   fmt.Sprintf("You have %d conversion rights left.", balance),
	}
	if balance == 0 {
		n.Buttons = []Button{{Label: "Buy a package", Event: intent.PackageBrowse{User: e.User}}}
	}
	return []Notification{n}, nil
}

func (h *Handler) handleUserStats(ctx context.Context, e intent.UserStats) ([]Notification, error) {
	user, err := h.ledger.GetUser(ctx, e.User.ID)
	if err != nil {
		return nil, err
	}
	recent, err := h.conversions.ListByUser(ctx, e.User.ID, 5)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	today, err := h.conversions.CountByUserSince(ctx, e.User.ID, now.Truncate(24*time.Hour))
	if err != nil {
		return nil, err
	}
	thisWeek, err := h.conversions.CountByUserSince(ctx, e.User.ID, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Your stats:\n")
	fmt.Fprintf(&b, "Rights left: %d\n", user.RemainingRights)
	fmt.Fprintf(&b, "Conversions: %d total, %d ok, %d failed\n",
		user.TotalConversions, user.SuccessfulConversions, user.FailedConversions)
	fmt.Fprintf(&b, "Today: %d, this week: %d\n", today, thisWeek)
	if len(recent) > 0 {
		fmt.Fprintf(&b, "Recent:\n")
		for _, r := range recent {
			fmt.Fprintf(&b, "  %s → %s (%s)\n", r.FileName, r.TargetFormat, r.Status)
		}
	}
	return []Notification{{ChatID: e.User.ID, Text: strings.TrimRight(b.String(), "\n")}}, nil
}

func (h *Handler) handlePackageBrowse(ctx context.Context, e intent.PackageBrowse) ([]Notification, error) {
	buttons := make([]Button, 0)
	for _, pkg := range h.catalog.List() {
		label := fmt.Sprintf("%s · %d rights · %s", pkg.Name, pkg.Rights, money.FormatLira(pkg.PriceMinor))
		if pkg.Popular {
			label = "⭐ " + label
		}
		buttons = append(buttons, Button{
			Label: label,
			Event: intent.PackageSelect{User: e.User, PackageID: pkg.ID},
		})
	}
	return []Notification{{
		ChatID:  e.User.ID,
		Text:    "Pick a package:",
		Buttons: buttons,
	}}, nil
}

func (h *Handler) handlePackageSelect(ctx context.Context, e intent.PackageSelect) ([]Notification, error) {
	pkg, ok := h.catalog.Get(e.PackageID)
	if !ok {
		return []Notification{{ChatID: e.User.ID, Text: "That package no longer exists."}}, nil
	}
	text := fmt.Sprintf("%s: %d conversion rights for %s (was %s, %d%% off).\n"+
		"Transfer the amount and press the button below.",
		pkg.Name, pkg.Rights, money.FormatLira(pkg.PriceMinor),
		money.FormatLira(pkg.OriginalPriceMinor), pkg.DiscountPercent())
	return []Notification{{
		ChatID: e.User.ID,
		Text:   text,
		Buttons: []Button{
			{Label: "I sent the transfer", Event: intent.PaymentClaim{User: e.User, PackageID: pkg.ID}},
		},
	}}, nil
}

func (h *Handler) handlePaymentClaim(ctx context.Context, e intent.PaymentClaim) ([]Notification, error) {
	paymentID, err := h.payments.Submit(ctx, profileFromRef(e.User), e.PackageID)
	if errors.Is(err, payments.ErrUnknownPackage) {
		return []Notification{{ChatID: e.User.ID, Text: "That package no longer exists."}}, nil
	}
	if err != nil {
		return nil, err
	}
	pkg, _ := h.catalog.Get(e.PackageID)

	out := []Notification{{
		ChatID: e.User.ID,
		Text:   fmt.Sprintf("Thanks! Payment #%d is waiting for review. Your rights land as soon as it's approved.", paymentID),
	}}
	if h.cfg.AdminID != 0 {
		out = append(out, Notification{
			ChatID: h.cfg.AdminID,
			Text: fmt.Sprintf("Payment #%d: %s (@%s, id %d) claims %s for %s (%d rights).",
				paymentID, e.User.FirstName, e.User.Username, e.User.ID,
				money.FormatLira(pkg.PriceMinor), pkg.Name, pkg.Rights),
			Buttons: []Button{
				{Label: "Approve", Event: intent.AdminDecision{AdminID: h.cfg.AdminID, PaymentID: paymentID, Decision: string(payments.DecisionApprove)}},
				{Label: "Reject", Event: intent.AdminDecision{AdminID: h.cfg.AdminID, PaymentID: paymentID, Decision: string(payments.DecisionReject)}},
			},
		})
	}
	return out, nil
}

func (h *Handler) handleAdminDecision(ctx context.Context, e intent.AdminDecision) ([]Notification, error) {
	if denied, err := h.requireAdmin(ctx, e.AdminID, fmt.Sprintf("decision on payment #%d", e.PaymentID)); denied != nil || err != nil {
		return denied, err
	}
	decision := payments.Decision(e.Decision)
	if decision != payments.DecisionApprove && decision != payments.DecisionReject {
		return []Notification{{ChatID: e.AdminID, Text: fmt.Sprintf("Unknown decision %q.", e.Decision)}}, nil
	}
	outcome, err := h.payments.Decide(ctx, e.PaymentID, e.AdminID, decision)
	if err != nil {
		return nil, err
	}
	if !outcome.Applied {
		switch outcome.Reason {
		case payments.ReasonNotFound:
			return []Notification{{ChatID: e.AdminID, Text: fmt.Sprintf("Payment #%d does not exist.", e.PaymentID)}}, nil
		default:
			return []Notification{{ChatID: e.AdminID, Text: fmt.Sprintf("Payment #%d was already decided (%s).", e.PaymentID, outcome.Payment.Status)}}, nil
		}
	}
	if decision == payments.DecisionApprove {
		return []Notification{
			{ChatID: e.AdminID, Text: fmt.Sprintf("Payment #%d approved, +%d rights.", e.PaymentID, outcome.Payment.PackageRights)},
			{ChatID: outcome.Payment.UserID, Text: fmt.Sprintf("Your payment was approved! +%d rights, you now have %d.", outcome.Payment.PackageRights, outcome.NewBalance)},
		}, nil
	}
	return []Notification{
		{ChatID: e.AdminID, Text: fmt.Sprintf("Payment #%d rejected.", e.PaymentID)},
		{ChatID: outcome.Payment.UserID, Text: "Your payment could not be verified and was rejected. Get in touch if you think this is wrong."},
	}, nil
}

func (h *Handler) handleAdminQuery(ctx context.Context, e intent.AdminQuery) ([]Notification, error) {
	if denied, err := h.requireAdmin(ctx, e.AdminID, fmt.Sprintf("query for user %d", e.UserID)); denied != nil || err != nil {
		return denied, err
	}
	user, err := h.ledger.GetUser(ctx, e.UserID)
	if err != nil {
		return []Notification{{ChatID: e.AdminID, Text: fmt.Sprintf("No user with id %d.", e.UserID)}}, nil
	}
	return []Notification{{
		ChatID: e.AdminID,
		Text: fmt.Sprintf("User %d (@%s %s %s)\nPackage: %s\nRights left: %d\nConversions: %d total, %d ok, %d failed\nLast seen: %s",
			user.UserID, user.Username, user.FirstName, user.LastName,
			user.PackageType, user.RemainingRights,
			user.TotalConversions, user.SuccessfulConversions, user.FailedConversions,
			user.LastActivity.Format(time.RFC3339)),
	}}, nil
}

func (h *Handler) handleAdminStats(ctx context.Context, e intent.AdminStats) ([]Notification, error) {
	if denied, err := h.requireAdmin(ctx, e.AdminID, "stats query"); denied != nil || err != nil {
		return denied, err
	}
	userCount, err := h.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := h.users.CounterTotals(ctx)
	if err != nil {
		return nil, err
	}
	dayAgo := time.Now().Add(-24 * time.Hour)
	activeUsers, err := h.activity.CountActiveUsersSince(ctx, dayAgo)
	if err != nil {
		return nil, err
	}
	conversionsToday, err := h.conversions.CountSince(ctx, dayAgo)
	if err != nil {
		return nil, err
	}
	pendingCount, err := h.payments.CountPending(ctx)
	if err != nil {
		return nil, err
	}
	topFormats, err := h.conversions.TopTargetFormats(ctx, 3)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Service stats:\n")
	fmt.Fprintf(&b, "Users: %d (%d active in 24h)\n", userCount, activeUsers)
	fmt.Fprintf(&b, "Conversions: %d ok, %d failed, %d in 24h\n", totals.Successful, totals.Failed, conversionsToday)
	fmt.Fprintf(&b, "Pending payments: %d\n", pendingCount)
	if len(topFormats) > 0 {
		fmt.Fprintf(&b, "Top targets:")
		for _, f := range topFormats {
			fmt.Fprintf(&b, " %s(%d)", f.TargetFormat, f.Count)
		}
	}
	return []Notification{{ChatID: e.AdminID, Text: strings.TrimRight(b.String(), "\n")}}, nil
}

// requireAdmin returns a refusal notification for anyone but the configured
// operator, and leaves a security entry in the activity log.
func (h *Handler) requireAdmin(ctx context.Context, callerID int64, what string) ([]Notification, error) {
	if callerID == h.cfg.AdminID && h.cfg.AdminID != 0 {
		return nil, nil
	}
	logErr := h.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return h.activity.Log(ctx, tx, callerID, store.ActivityUnauthorized, what)
	})
	if logErr != nil {
		return nil, logErr
	}
	return []Notification{{ChatID: callerID, Text: "You are not authorized to do that."}}, nil
}
