// Package intent defines the closed set of user and admin actions the bot
// understands. Events arrive as a JSON envelope with a type tag; decoding
// rejects anything outside the enumeration, so handlers can switch on the
// concrete type exhaustively.
package intent

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownEvent = errors.New("unknown event type")

// UserRef identifies the chat user an event came from.
type UserRef struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type Event interface {
	isEvent()
}

// Start is the user's first contact or a returning /start.
type Start struct {
	User UserRef `json:"user"`
}

// DocumentReceived carries an uploaded file waiting for a target choice.
type DocumentReceived struct {
	User     UserRef `json:"user"`
	FileID   string  `json:"file_id"`
	FileName string  `json:"file_name"`
	FileSize int64   `json:"file_size"`
}

// ConversionChoice selects the target format for the pending document.
type ConversionChoice struct {
	User   UserRef `json:"user"`
	Target string  `json:"target"`
}

// RightsQuery asks for the user's remaining balance.
type RightsQuery struct {
	User UserRef `json:"user"`
}

// UserStats asks for the user's own conversion counters.
type UserStats struct {
	User UserRef `json:"user"`
}

// PackageBrowse opens the package catalog.
type PackageBrowse struct {
	User UserRef `json:"user"`
}

// PackageSelect shows one package's price and transfer instructions.
type PackageSelect struct {
	User      UserRef `json:"user"`
	PackageID string  `json:"package_id"`
}

// PaymentClaim is the user's statement that the transfer was made.
type PaymentClaim struct {
	User      UserRef `json:"user"`
	PackageID string  `json:"package_id"`
}

// AdminDecision approves or rejects a pending payment.
type AdminDecision struct {
	AdminID   int64  `json:"admin_id"`
	PaymentID int64  `json:"payment_id"`
	Decision  string `json:"decision"`
}

// AdminQuery looks up one user's account for the operator.
type AdminQuery struct {
	AdminID int64 `json:"admin_id"`
	UserID  int64 `json:"user_id"`
}

// AdminStats asks for the service-wide dashboard numbers.
type AdminStats struct {
	AdminID int64 `json:"admin_id"`
}

func (Start) isEvent()            {}
func (DocumentReceived) isEvent() {}
func (ConversionChoice) isEvent() {}
func (RightsQuery) isEvent()      {}
func (UserStats) isEvent()        {}
func (PackageBrowse) isEvent()    {}
func (PackageSelect) isEvent()    {}
func (PaymentClaim) isEvent()     {}
func (AdminDecision) isEvent()    {}
func (AdminQuery) isEvent()       {}
func (AdminStats) isEvent()       {}

const (
	typeStart            = "start"
	typeDocumentReceived = "document_received"
	typeConversionChoice = "conversion_choice"
	typeRightsQuery      = "rights_query"
	typeUserStats        = "user_stats"
	typePackageBrowse    = "package_browse"
	typePackageSelect    = "package_select"
	typePaymentClaim     = "payment_claim"
	typeAdminDecision    = "admin_decision"
	typeAdminQuery       = "admin_query"
	typeAdminStats       = "admin_stats"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses a JSON envelope into its concrete event.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var event Event
	switch env.Type {
	case typeStart:
		event = &Start{}
	case typeDocumentReceived:
		event = &DocumentReceived{}
	case typeConversionChoice:
		event = &ConversionChoice{}
	case typeRightsQuery:
		event = &RightsQuery{}
	case typeUserStats:
		event = &UserStats{}
	case typePackageBrowse:
		event = &PackageBrowse{}
	case typePackageSelect:
		event = &PackageSelect{}
	case typePaymentClaim:
		event = &PaymentClaim{}
	case typeAdminDecision:
		event = &AdminDecision{}
	case typeAdminQuery:
		event = &AdminQuery{}
	case typeAdminStats:
		event = &AdminStats{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
	if err := json.Unmarshal(env.Payload, event); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return deref(event), nil
}

// Encode wraps an event in its JSON envelope.
func Encode(event Event) ([]byte, error) {
	name, err := typeName(event)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: name, Payload: payload})
}

func typeName(event Event) (string, error) {
	switch event.(type) {
	case Start, *Start:
		return typeStart, nil
	case DocumentReceived, *DocumentReceived:
		return typeDocumentReceived, nil
	case ConversionChoice, *ConversionChoice:
		return typeConversionChoice, nil
	case RightsQuery, *RightsQuery:
		return typeRightsQuery, nil
	case UserStats, *UserStats:
		return typeUserStats, nil
	case PackageBrowse, *PackageBrowse:
		return typePackageBrowse, nil
	case PackageSelect, *PackageSelect:
		return typePackageSelect, nil
	case PaymentClaim, *PaymentClaim:
		return typePaymentClaim, nil
	case AdminDecision, *AdminDecision:
		return typeAdminDecision, nil
	case AdminQuery, *AdminQuery:
		return typeAdminQuery, nil
	case AdminStats, *AdminStats:
		return typeAdminStats, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}
}

func deref(event Event) Event {
	switch e := event.(type) {
	case *Start:
		return *e
	case *DocumentReceived:
		return *e
	case *ConversionChoice:
		return *e
	case *RightsQuery:
		return *e
	case *UserStats:
		return *e
	case *PackageBrowse:
		return *e
	case *PackageSelect:
		return *e
	case *PaymentClaim:
		return *e
	case *AdminDecision:
		return *e
	case *AdminQuery:
		return *e
	case *AdminStats:
		return *e
	default:
		return event
	}
}
