package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ActivityStore struct {
	db DB
}

func NewActivityStore(db DB) *ActivityStore {
	return &ActivityStore{db: db}
}

const (
	ActivityRegistration     = "registration"
	ActivityLogin            = "login"
	ActivityConversionOK     = "conversion_success"
	ActivityConversionFailed = "conversion_failed"
	ActivityPaymentRequest   = "payment_request"
	ActivityPaymentApproved  = "payment_approved"
	ActivityPaymentRejected  = "payment_rejected"
	ActivityRightsAdded      = "rights_added"
	ActivityUnauthorized     = "unauthorized_admin_access"
)

func (s *ActivityStore) Log(ctx context.Context, tx Execer, userID int64, activityType, details string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO activity_log (id, user_id, activity_type, details)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), userID, activityType, details)
	return err
}

func (s *ActivityStore) CountActiveUsersSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(DISTINCT user_id)
		FROM activity_log
		WHERE created_at >= $1
	`, since)
	return count, err
}
