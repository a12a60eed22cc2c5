// Package convert orchestrates a single document conversion: validate the
// source → target pair, run the engine, verify the artifact, then charge
// exactly one right. A right is only ever consumed for a verified artifact,
// and an artifact is only ever released for a consumed right.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filebot/internal/db"
	"filebot/internal/models"
	"filebot/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrUnsupported = errors.New("unsupported conversion")
	ErrOutOfRights = errors.New("no conversion rights remaining")
)

// Engine turns the input file into the output file. Implementations wrap
// an external converter; the orchestrator never trusts a nil error alone
// and stats the artifact itself.
type Engine interface {
	Convert(ctx context.Context, inputPath, outputPath string, source, target Format) error
}

type Ledger interface {
	GetBalance(ctx context.Context, userID int64) (int, error)
	ConsumeRight(ctx context.Context, userID int64) (bool, error)
	RecordFailedAttempt(ctx context.Context, userID int64) error
}

type ConversionStore interface {
	Insert(ctx context.Context, tx store.Execer, input store.ConversionInput) error
}

type Request struct {
	UserID       int64
	FileName     string
	FileSize     int64
	InputPath    string
	OutputDir    string
	SourceFormat Format
	TargetFormat Format
}

type Result struct {
	RecordID   string
	OutputPath string
	OutputName string
	Remaining  int
	DurationMS int64
}

type Orchestrator struct {
	txRunner    db.TxRunner
	engine      Engine
	ledger      Ledger
	conversions ConversionStore
}

func NewOrchestrator(txRunner db.TxRunner, engine Engine, ledger Ledger, conversions ConversionStore) *Orchestrator {
	return &Orchestrator{
		txRunner:    txRunner,
		engine:      engine,
		ledger:      ledger,
		conversions: conversions,
	}
}

// Run performs one conversion attempt end to end. The balance is checked
// up front so an exhausted user never burns engine time, and checked again
// at charge time so two in-flight conversions cannot share one right; the
// loser's artifact is discarded.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	if !CanConvert(req.SourceFormat, req.TargetFormat) {
		return Result{}, fmt.Errorf("%w: %s to %s", ErrUnsupported, req.SourceFormat, req.TargetFormat)
	}

	balance, err := o.ledger.GetBalance(ctx, req.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("check balance: %w", err)
	}
	if balance <= 0 {
		return Result{}, ErrOutOfRights
	}

	outputName := OutputName(req.FileName, req.TargetFormat)
	outputPath := filepath.Join(req.OutputDir, outputName)

	start := time.Now()
	convErr := o.engine.Convert(ctx, req.InputPath, outputPath, req.SourceFormat, req.TargetFormat)
	if convErr == nil {
		if _, statErr := os.Stat(outputPath); statErr != nil {
			convErr = fmt.Errorf("engine reported success but produced no artifact: %w", statErr)
		}
	}
	durationMS := time.Since(start).Milliseconds()

	if convErr != nil {
		recordID, recErr := o.recordFailure(ctx, req, durationMS, convErr.Error())
		if recErr != nil {
			return Result{}, fmt.Errorf("record failed conversion: %w", recErr)
		}
		return Result{RecordID: recordID, DurationMS: durationMS}, convErr
	}

	charged, err := o.ledger.ConsumeRight(ctx, req.UserID)
	if err != nil {
		_ = os.Remove(outputPath)
		return Result{}, fmt.Errorf("consume right: %w", err)
	}
	if !charged {
		// Balance was drained between the pre-check and the charge.
		// The artifact must not leave the building unpaid.
		_ = os.Remove(outputPath)
		recordID, recErr := o.recordFailure(ctx, req, durationMS, "balance exhausted")
		if recErr != nil {
			return Result{}, fmt.Errorf("record refused conversion: %w", recErr)
		}
		return Result{RecordID: recordID, DurationMS: durationMS}, ErrOutOfRights
	}

	remaining, err := o.ledger.GetBalance(ctx, req.UserID)
	if err != nil {
		remaining = 0
	}

	recordID := uuid.NewString()
	err = o.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return o.conversions.Insert(ctx, tx, store.ConversionInput{
			ID:           recordID,
			UserID:       req.UserID,
			FileName:     req.FileName,
			FileSize:     req.FileSize,
			SourceFormat: string(req.SourceFormat),
			TargetFormat: string(req.TargetFormat),
			Status:       models.ConversionStatusSuccess,
			DurationMS:   durationMS,
		})
	})
	if err != nil {
		return Result{}, fmt.Errorf("record conversion: %w", err)
	}

	return Result{
		RecordID:   recordID,
		OutputPath: outputPath,
		OutputName: outputName,
		Remaining:  remaining,
		DurationMS: durationMS,
	}, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, req Request, durationMS int64, message string) (string, error) {
	if err := o.ledger.RecordFailedAttempt(ctx, req.UserID); err != nil {
		return "", err
	}
	recordID := uuid.NewString()
	err := o.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return o.conversions.Insert(ctx, tx, store.ConversionInput{
			ID:           recordID,
			UserID:       req.UserID,
			FileName:     req.FileName,
			FileSize:     req.FileSize,
			SourceFormat: string(req.SourceFormat),
			TargetFormat: string(req.TargetFormat),
			Status:       models.ConversionStatusFailed,
			DurationMS:   durationMS,
			ErrorMessage: &message,
		})
	})
	if err != nil {
		return "", err
	}
	return recordID, nil
}

// OutputName derives the artifact name from the input name and target.
func OutputName(fileName string, target Format) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	if base == "" {
		base = "converted"
	}
	return base + TargetExtension(target)
}
