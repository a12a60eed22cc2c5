package intent

import (
	"errors"
	"testing"
)

func TestDecodeKnownEvents(t *testing.T) {
	event, err := Decode([]byte(`{"type":"document_received","payload":{"user":{"id":42,"username":"ada"},"file_id":"f1","file_name":"report.docx","file_size":1024}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, ok := event.(DocumentReceived)
	if !ok {
		t.Fatalf("unexpected event type %T", event)
	}
	if doc.User.ID != 42 || doc.FileName != "report.docx" || doc.FileSize != 1024 {
		t.Fatalf("unexpected event: %#v", doc)
	}
}

func TestDecodeAdminDecision(t *testing.T) {
	event, err := Decode([]byte(`{"type":"admin_decision","payload":{"admin_id":1,"payment_id":7,"decision":"approve"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decision, ok := event.(AdminDecision)
	if !ok || decision.PaymentID != 7 || decision.Decision != "approve" {
		t.Fatalf("unexpected event: %#v", event)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"teleport","payload":{}}`)); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestDecodeMalformedEnvelope(t *testing.T) {
	if _, err := Decode([]byte(`{`)); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	events := []Event{
		Start{User: UserRef{ID: 1}},
		ConversionChoice{User: UserRef{ID: 1}, Target: "PDF"},
		PaymentClaim{User: UserRef{ID: 1}, PackageID: "15"},
		AdminQuery{AdminID: 9, UserID: 1},
		AdminStats{AdminID: 9},
	}
	for _, event := range events {
		data, err := Encode(event)
		if err != nil {
			t.Fatalf("encode %T: %v", event, err)
		}
		decoded, err := Decode(data)
		if err != nil {
			t.Fatalf("decode %T: %v", event, err)
		}
		if decoded != event {
			t.Fatalf("round trip mismatch: %#v != %#v", decoded, event)
		}
	}
}
