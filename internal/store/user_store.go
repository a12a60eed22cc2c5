package store

import (
	"context"

	"filebot/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

type UserProfile struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
}

func (s *UserStore) Get(ctx context.Context, userID int64) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, username, first_name, last_name, package_type,
		       remaining_rights, total_conversions, successful_conversions,
		       failed_conversions, last_activity, registered_at, updated_at
		FROM users
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return models.User{}, err
	}
	return row, nil
}

func (s *UserStore) GetTx(ctx context.Context, tx Getter, userID int64) (models.User, error) {
	var row models.User
	err := tx.GetContext(ctx, &row, `
		SELECT user_id, username, first_name, last_name, package_type,
		       remaining_rights, total_conversions, successful_conversions,
		       failed_conversions, last_activity, registered_at, updated_at
		FROM users
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return models.User{}, err
	}
	return row, nil
}

func (s *UserStore) GetBalance(ctx context.Context, userID int64) (int, error) {
	var balance int
	err := s.db.GetContext(ctx, &balance, `
		SELECT remaining_rights
		FROM users
		WHERE user_id = $1
	`, userID)
	return balance, err
}

func (s *UserStore) Create(ctx context.Context, tx Execer, profile UserProfile, initialRights int, packageType string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (user_id, username, first_name, last_name, package_type, remaining_rights)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, profile.UserID, profile.Username, profile.FirstName, profile.LastName, packageType, initialRights)
	return err
}

func (s *UserStore) TouchProfile(ctx context.Context, tx Execer, profile UserProfile) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET username = $1, first_name = $2, last_name = $3,
		    last_activity = NOW(), updated_at = NOW()
		WHERE user_id = $4
	`, profile.Username, profile.FirstName, profile.LastName, profile.UserID)
	return err
}

// ConsumeRight is the single decrementing write against remaining_rights.
// The WHERE guard makes concurrent consumes of the last right yield exactly
// one success; everyone else gets sql.ErrNoRows and must treat the balance
// as exhausted.
func (s *UserStore) ConsumeRight(ctx context.Context, tx Getter, userID int64) (int, error) {
	var remaining int
	err := tx.GetContext(ctx, &remaining, `
		UPDATE users
		SET remaining_rights = remaining_rights - 1,
		    successful_conversions = successful_conversions + 1,
		    total_conversions = total_conversions + 1,
		    last_activity = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND remaining_rights > 0
		RETURNING remaining_rights
	`, userID)
	return remaining, err
}

func (s *UserStore) RecordFailure(ctx context.Context, tx Execer, userID int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET failed_conversions = failed_conversions + 1,
		    total_conversions = total_conversions + 1,
		    last_activity = NOW(), updated_at = NOW()
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Credit is the single incrementing write against remaining_rights. It
// creates the user when absent so an approved payment for an unknown user
// still lands.
func (s *UserStore) Credit(ctx context.Context, tx Getter, profile UserProfile, amount int, packageID string) (int, error) {
	var remaining int
	err := tx.GetContext(ctx, &remaining, `
		INSERT INTO users (user_id, username, first_name, last_name, package_type, remaining_rights)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET remaining_rights = users.remaining_rights + EXCLUDED.remaining_rights,
		    package_type = EXCLUDED.package_type,
		    last_activity = NOW(), updated_at = NOW()
		RETURNING remaining_rights
	`, profile.UserID, profile.Username, profile.FirstName, profile.LastName, packageID, amount)
	return remaining, err
}

func (s *UserStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	return count, err
}

type CounterTotals struct {
	Successful int `db:"successful"`
	Failed     int `db:"failed"`
}

func (s *UserStore) CounterTotals(ctx context.Context) (CounterTotals, error) {
	var totals CounterTotals
	err := s.db.GetContext(ctx, &totals, `
		SELECT COALESCE(SUM(successful_conversions), 0) AS successful,
		       COALESCE(SUM(failed_conversions), 0) AS failed
		FROM users
	`)
	return totals, err
}
