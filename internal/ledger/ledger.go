// Package ledger owns every mutation of a user's remaining_rights.
// ConsumeRight is the only decrementing path and CreditRightsTx the only
// incrementing one; nothing else in the repository writes that column.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"filebot/internal/db"
	"filebot/internal/models"
	"filebot/internal/store"
	"filebot/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type Service struct {
	txRunner      db.TxRunner
	users         UserStore
	activity      ActivityStore
	hub           BalanceHub
	defaultRights int
}

type UserStore interface {
	Get(ctx context.Context, userID int64) (models.User, error)
	GetTx(ctx context.Context, tx store.Getter, userID int64) (models.User, error)
	GetBalance(ctx context.Context, userID int64) (int, error)
	Create(ctx context.Context, tx store.Execer, profile store.UserProfile, initialRights int, packageType string) error
	TouchProfile(ctx context.Context, tx store.Execer, profile store.UserProfile) error
	ConsumeRight(ctx context.Context, tx store.Getter, userID int64) (int, error)
	RecordFailure(ctx context.Context, tx store.Execer, userID int64) (int64, error)
	Credit(ctx context.Context, tx store.Getter, profile store.UserProfile, amount int, packageID string) (int, error)
}

type ActivityStore interface {
	Log(ctx context.Context, tx store.Execer, userID int64, activityType, details string) error
}

type BalanceHub interface {
	BroadcastBalance(userID int64, update websocket.BalanceUpdate)
}

func New(txRunner db.TxRunner, users UserStore, activity ActivityStore, hub BalanceHub, defaultRights int) *Service {
	return &Service{
		txRunner:      txRunner,
		users:         users,
		activity:      activity,
		hub:           hub,
		defaultRights: defaultRights,
	}
}

// GetBalance reports the user's remaining rights. An unknown user simply
// has no rights; absence is not an error.
func (s *Service) GetBalance(ctx context.Context, userID int64) (int, error) {
	balance, err := s.users.GetBalance(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// RegisterOrTouch creates the user with the default balance on first
// contact, or refreshes the mutable profile fields without touching the
// balance. Either way an activity entry is appended.
func (s *Service) RegisterOrTouch(ctx context.Context, profile store.UserProfile) (models.User, error) {
	var user models.User
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		existing, err := s.users.GetTx(ctx, tx, profile.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			if err := s.users.Create(ctx, tx, profile, s.defaultRights, fmt.Sprint(s.defaultRights)); err != nil {
				return err
			}
			if err := s.activity.Log(ctx, tx, profile.UserID, store.ActivityRegistration, "new user"); err != nil {
				return err
			}
			user, err = s.users.GetTx(ctx, tx, profile.UserID)
			return err
		}
		if err != nil {
			return err
		}
		if err := s.users.TouchProfile(ctx, tx, profile); err != nil {
			return err
		}
		if err := s.activity.Log(ctx, tx, profile.UserID, store.ActivityLogin, "returning user"); err != nil {
			return err
		}
		user = existing
		user.Username = profile.Username
		user.FirstName = profile.FirstName
		user.LastName = profile.LastName
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// ConsumeRight spends one right after a successful conversion. It returns
// false with no mutation when the balance already hit zero, including the
// race where another conversion took the last right concurrently.
func (s *Service) ConsumeRight(ctx context.Context, userID int64) (bool, error) {
	var remaining int
	consumed := false
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		remaining, err = s.users.ConsumeRight(ctx, tx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return errOutOfRights
		}
		if err != nil {
			return err
		}
		consumed = true
		return s.activity.Log(ctx, tx, userID, store.ActivityConversionOK, "right consumed")
	})
	if errors.Is(err, errOutOfRights) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{UserID: userID, RemainingRights: remaining})
	return consumed, nil
}

// RecordFailedAttempt counts a failed conversion. Failed conversions are
// free: remaining_rights is not touched.
func (s *Service) RecordFailedAttempt(ctx context.Context, userID int64) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.users.RecordFailure(ctx, tx, userID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		return s.activity.Log(ctx, tx, userID, store.ActivityConversionFailed, "failed attempt")
	})
}

// CreditRightsTx adds rights inside the caller's transaction, creating the
// user if absent. Only the payment workflow calls this, on approval.
func (s *Service) CreditRightsTx(ctx context.Context, tx *sqlx.Tx, profile store.UserProfile, amount int, packageID string) (int, error) {
	remaining, err := s.users.Credit(ctx, tx, profile, amount, packageID)
	if err != nil {
		return 0, err
	}
	if err := s.activity.Log(ctx, tx, profile.UserID, store.ActivityRightsAdded, fmt.Sprintf("+%d rights (package %s)", amount, packageID)); err != nil {
		return 0, err
	}
	return remaining, nil
}

// BroadcastBalance pushes a balance update to dashboard subscribers after
// the caller's transaction committed.
func (s *Service) BroadcastBalance(userID int64, remaining int) {
	s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{UserID: userID, RemainingRights: remaining})
}

// GetUser loads the full user row, for admin queries and stats.
func (s *Service) GetUser(ctx context.Context, userID int64) (models.User, error) {
	return s.users.Get(ctx, userID)
}

var errOutOfRights = errors.New("no rights remaining")
