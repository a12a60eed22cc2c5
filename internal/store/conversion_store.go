package store

import (
	"context"
	"time"

	"filebot/internal/models"
)

type ConversionStore struct {
	db DB
}

func NewConversionStore(db DB) *ConversionStore {
	return &ConversionStore{db: db}
}

type ConversionInput struct {
	ID           string
	UserID       int64
	FileName     string
	FileSize     int64
	SourceFormat string
	TargetFormat string
	Status       string
	DurationMS   int64
	ErrorMessage *string
}

func (s *ConversionStore) Insert(ctx context.Context, tx Execer, input ConversionInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO conversions (id, user_id, file_name, file_size, source_format, target_format, status, duration_ms, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, input.ID, input.UserID, input.FileName, input.FileSize, input.SourceFormat,
		input.TargetFormat, input.Status, input.DurationMS, input.ErrorMessage)
	return err
}

func (s *ConversionStore) ListByUser(ctx context.Context, userID int64, limit int) ([]models.ConversionRecord, error) {
	var rows []models.ConversionRecord
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, file_name, file_size, source_format, target_format,
		       status, duration_ms, error_message, created_at
		FROM conversions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ConversionStore) CountByUserSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM conversions
		WHERE user_id = $1 AND created_at >= $2
	`, userID, since)
	return count, err
}

func (s *ConversionStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM conversions
		WHERE created_at >= $1
	`, since)
	return count, err
}

func (s *ConversionStore) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM conversions
		WHERE status = $1
	`, status)
	return count, err
}

type FormatCount struct {
	TargetFormat string `db:"target_format"`
	Count        int    `db:"count"`
}

func (s *ConversionStore) TopTargetFormats(ctx context.Context, limit int) ([]FormatCount, error) {
	var rows []FormatCount
	err := s.db.SelectContext(ctx, &rows, `
		SELECT target_format, COUNT(*) AS count
		FROM conversions
		GROUP BY target_format
		ORDER BY count DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
