package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"filebot/internal/store"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

type stubEngine struct {
	err     error
	noWrite bool
}

func (e *stubEngine) Convert(ctx context.Context, inputPath, outputPath string, source, target Format) error {
	if e.err != nil {
		return e.err
	}
	if e.noWrite {
		return nil
	}
	return os.WriteFile(outputPath, []byte("artifact"), 0o644)
}

type stubLedger struct {
	mu       sync.Mutex
	balance  int
	failures int
	// drainAfterCheck zeroes the balance right after the first GetBalance,
	// emulating a concurrent spender winning the race.
	drainAfterCheck bool
	checked         bool
}

func (l *stubLedger) GetBalance(ctx context.Context, userID int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := l.balance
	if l.drainAfterCheck && !l.checked {
		l.checked = true
		l.balance = 0
	}
	return balance, nil
}

func (l *stubLedger) ConsumeRight(ctx context.Context, userID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balance <= 0 {
		return false, nil
	}
	l.balance--
	return true, nil
}

func (l *stubLedger) RecordFailedAttempt(ctx context.Context, userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures++
	return nil
}

type memConversions struct {
	mu      sync.Mutex
	records []store.ConversionInput
}

func (m *memConversions) Insert(ctx context.Context, tx store.Execer, input store.ConversionInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, input)
	return nil
}

func request(t *testing.T, dir string) Request {
	inputPath := filepath.Join(dir, "report.docx")
	if err := os.WriteFile(inputPath, []byte("input"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return Request{
		UserID:       42,
		FileName:     "report.docx",
		FileSize:     5,
		InputPath:    inputPath,
		OutputDir:    dir,
		SourceFormat: FormatWord,
		TargetFormat: FormatPDF,
	}
}

func TestRunSuccessConsumesOneRight(t *testing.T) {
	dir := t.TempDir()
	ledger := &stubLedger{balance: 3}
	records := &memConversions{}
	orch := NewOrchestrator(fakeTxRunner{}, &stubEngine{}, ledger, records)

	result, err := orch.Run(context.Background(), request(t, dir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Remaining != 2 || ledger.balance != 2 {
		t.Fatalf("expected one right consumed, remaining=%d balance=%d", result.Remaining, ledger.balance)
	}
	if _, err := os.Stat(result.OutputPath); err != nil {
		t.Fatalf("expected artifact at %s: %v", result.OutputPath, err)
	}
	if result.OutputName != "report.pdf" {
		t.Fatalf("unexpected output name %q", result.OutputName)
	}
	if len(records.records) != 1 || records.records[0].Status != "success" {
		t.Fatalf("expected one success record: %#v", records.records)
	}
}

func TestRunUnsupportedPairRefusedWithoutCharge(t *testing.T) {
	dir := t.TempDir()
	ledger := &stubLedger{balance: 3}
	records := &memConversions{}
	orch := NewOrchestrator(fakeTxRunner{}, &stubEngine{}, ledger, records)

	req := request(t, dir)
	req.SourceFormat = FormatExcel
	req.TargetFormat = FormatImage
	if _, err := orch.Run(context.Background(), req); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if ledger.balance != 3 || len(records.records) != 0 {
		t.Fatalf("refused pair must be free and unrecorded: balance=%d records=%d", ledger.balance, len(records.records))
	}
}

func TestRunExhaustedRefusedBeforeEngine(t *testing.T) {
	dir := t.TempDir()
	ledger := &stubLedger{balance: 0}
	engine := &stubEngine{err: errors.New("engine must not run")}
	orch := NewOrchestrator(fakeTxRunner{}, engine, ledger, &memConversions{})

	if _, err := orch.Run(context.Background(), request(t, dir)); !errors.Is(err, ErrOutOfRights) {
		t.Fatalf("expected ErrOutOfRights, got %v", err)
	}
}

func TestRunEngineFailureIsFree(t *testing.T) {
	dir := t.TempDir()
	ledger := &stubLedger{balance: 3}
	records := &memConversions{}
	orch := NewOrchestrator(fakeTxRunner{}, &stubEngine{err: errors.New("corrupt document")}, ledger, records)

	result, err := orch.Run(context.Background(), request(t, dir))
	if err == nil {
		t.Fatal("expected engine error")
	}
	if ledger.balance != 3 {
		t.Fatalf("failed conversion must be free, balance=%d", ledger.balance)
	}
	if ledger.failures != 1 {
		t.Fatalf("expected one recorded failure, got %d", ledger.failures)
	}
	if len(records.records) != 1 || records.records[0].Status != "failed" {
		t.Fatalf("expected one failed record: %#v", records.records)
	}
	if records.records[0].ErrorMessage == nil || *records.records[0].ErrorMessage != "corrupt document" {
		t.Fatalf("unexpected error message: %#v", records.records[0].ErrorMessage)
	}
	if result.RecordID == "" {
		t.Fatal("expected a record id for the failed attempt")
	}
}

func TestRunMissingArtifactIsFailure(t *testing.T) {
	dir := t.TempDir()
	ledger := &stubLedger{balance: 3}
	records := &memConversions{}
	orch := NewOrchestrator(fakeTxRunner{}, &stubEngine{noWrite: true}, ledger, records)

	if _, err := orch.Run(context.Background(), request(t, dir)); err == nil {
		t.Fatal("expected error when the engine leaves no artifact")
	}
	if ledger.balance != 3 {
		t.Fatalf("missing artifact must be free, balance=%d", ledger.balance)
	}
	if len(records.records) != 1 || records.records[0].Status != "failed" {
		t.Fatalf("expected one failed record: %#v", records.records)
	}
}

func TestRunDrainedAtChargeDiscardsArtifact(t *testing.T) {
	dir := t.TempDir()
	ledger := &stubLedger{balance: 1, drainAfterCheck: true}
	records := &memConversions{}
	orch := NewOrchestrator(fakeTxRunner{}, &stubEngine{}, ledger, records)

	_, err := orch.Run(context.Background(), request(t, dir))
	if !errors.Is(err, ErrOutOfRights) {
		t.Fatalf("expected ErrOutOfRights, got %v", err)
	}
	outputPath := filepath.Join(dir, "report.pdf")
	if _, statErr := os.Stat(outputPath); !os.IsNotExist(statErr) {
		t.Fatal("unpaid artifact must be discarded")
	}
	if len(records.records) != 1 || records.records[0].Status != "failed" {
		t.Fatalf("expected one failed record: %#v", records.records)
	}
	if records.records[0].ErrorMessage == nil || *records.records[0].ErrorMessage != "balance exhausted" {
		t.Fatalf("unexpected error message: %#v", records.records[0].ErrorMessage)
	}
}
