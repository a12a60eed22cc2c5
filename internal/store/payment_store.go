package store

import (
	"context"

	"filebot/internal/models"
)

type PaymentStore struct {
	db DB
}

func NewPaymentStore(db DB) *PaymentStore {
	return &PaymentStore{db: db}
}

type PendingPaymentInput struct {
	UserID        int64
	Username      string
	FirstName     string
	PackageID     string
	PackageRights int
	AmountMinor   int64
}

func (s *PaymentStore) InsertPending(ctx context.Context, tx Getter, input PendingPaymentInput) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		INSERT INTO pending_payments (user_id, username, first_name, package_id, package_rights, amount_minor)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, input.UserID, input.Username, input.FirstName, input.PackageID, input.PackageRights, input.AmountMinor)
	return id, err
}

func (s *PaymentStore) GetForUpdate(ctx context.Context, tx Getter, paymentID int64) (models.PendingPayment, error) {
	var row models.PendingPayment
	err := tx.GetContext(ctx, &row, `
		SELECT id, user_id, username, first_name, package_id, package_rights,
		       amount_minor, status, requested_at, decided_at, decided_by
		FROM pending_payments
		WHERE id = $1
		FOR UPDATE
	`, paymentID)
	if err != nil {
		return models.PendingPayment{}, err
	}
	return row, nil
}

// MarkDecided flips a pending payment into a terminal state. The status
// guard in the WHERE clause means a payment can be decided at most once;
// callers must check the returned row count.
func (s *PaymentStore) MarkDecided(ctx context.Context, tx Execer, paymentID int64, status string, adminID int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE pending_payments
		SET status = $1, decided_at = NOW(), decided_by = $2
		WHERE id = $3 AND status = 'pending'
	`, status, adminID, paymentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type CompletedPaymentInput struct {
	PendingPaymentID int64
	UserID           int64
	PackageID        string
	PackageRights    int
	RightsAdded      int
	AmountMinor      int64
	BalanceAfter     int
	ApprovedBy       int64
}

func (s *PaymentStore) InsertCompleted(ctx context.Context, tx Execer, input CompletedPaymentInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO completed_payments (pending_payment_id, user_id, package_id, package_rights, rights_added, amount_minor, balance_after, approved_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, input.PendingPaymentID, input.UserID, input.PackageID, input.PackageRights,
		input.RightsAdded, input.AmountMinor, input.BalanceAfter, input.ApprovedBy)
	return err
}

func (s *PaymentStore) ListPending(ctx context.Context) ([]models.PendingPayment, error) {
	var rows []models.PendingPayment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, username, first_name, package_id, package_rights,
		       amount_minor, status, requested_at, decided_at, decided_by
		FROM pending_payments
		WHERE status = 'pending'
		ORDER BY requested_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *PaymentStore) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM pending_payments
		WHERE status = 'pending'
	`)
	return count, err
}
