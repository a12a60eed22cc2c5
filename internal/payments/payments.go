// Package payments drives the pending → approved | rejected state machine
// for manually verified bank transfers. A decision and its balance credit
// commit as one unit, so a crash or a double click can never replay into a
// double credit.
package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"filebot/internal/catalog"
	"filebot/internal/db"
	"filebot/internal/models"
	"filebot/internal/store"

	"github.com/jmoiron/sqlx"
)

var ErrUnknownPackage = errors.New("unknown package")

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

const (
	ReasonNotFound   = "not_found"
	ReasonNotPending = "not_pending"
)

// Outcome reports what a decision did. Applied is false for the benign
// races: a payment id that does not exist or one already decided.
type Outcome struct {
	Applied    bool
	Reason     string
	Payment    models.PendingPayment
	NewBalance int
}

type Service struct {
	txRunner db.TxRunner
	payments PaymentStore
	ledger   RightsCreditor
	activity ActivityStore
	catalog  *catalog.Catalog
}

type PaymentStore interface {
	InsertPending(ctx context.Context, tx store.Getter, input store.PendingPaymentInput) (int64, error)
	GetForUpdate(ctx context.Context, tx store.Getter, paymentID int64) (models.PendingPayment, error)
	MarkDecided(ctx context.Context, tx store.Execer, paymentID int64, status string, adminID int64) (int64, error)
	InsertCompleted(ctx context.Context, tx store.Execer, input store.CompletedPaymentInput) error
	ListPending(ctx context.Context) ([]models.PendingPayment, error)
	CountPending(ctx context.Context) (int, error)
}

type RightsCreditor interface {
	CreditRightsTx(ctx context.Context, tx *sqlx.Tx, profile store.UserProfile, amount int, packageID string) (int, error)
	BroadcastBalance(userID int64, remaining int)
}

type ActivityStore interface {
	Log(ctx context.Context, tx store.Execer, userID int64, activityType, details string) error
}

func New(txRunner db.TxRunner, payments PaymentStore, ledger RightsCreditor, activity ActivityStore, cat *catalog.Catalog) *Service {
	return &Service{
		txRunner: txRunner,
		payments: payments,
		ledger:   ledger,
		activity: activity,
		catalog:  cat,
	}
}

// Submit records a user's claim of having transferred the package price.
func (s *Service) Submit(ctx context.Context, profile store.UserProfile, packageID string) (int64, error) {
	pkg, ok := s.catalog.Get(packageID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPackage, packageID)
	}
	var paymentID int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		paymentID, err = s.payments.InsertPending(ctx, tx, store.PendingPaymentInput{
			UserID:        profile.UserID,
			Username:      profile.Username,
			FirstName:     profile.FirstName,
			PackageID:     pkg.ID,
			PackageRights: pkg.Rights,
			AmountMinor:   pkg.PriceMinor,
		})
		if err != nil {
			return err
		}
		return s.activity.Log(ctx, tx, profile.UserID, store.ActivityPaymentRequest,
			fmt.Sprintf("payment #%d for package %s", paymentID, pkg.ID))
	})
	if err != nil {
		return 0, err
	}
	return paymentID, nil
}

// Decide executes an admin decision. The status check, the credit, the
// completed-payment append and the status flip happen in one serializable
// transaction; anything already decided comes back as a no-op outcome.
func (s *Service) Decide(ctx context.Context, paymentID, adminID int64, decision Decision) (Outcome, error) {
	var outcome Outcome
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		outcome = Outcome{}
		payment, err := s.payments.GetForUpdate(ctx, tx, paymentID)
		if errors.Is(err, sql.ErrNoRows) {
			outcome.Reason = ReasonNotFound
			return nil
		}
		if err != nil {
			return err
		}
		outcome.Payment = payment
		if payment.Status != models.PaymentStatusPending {
			outcome.Reason = ReasonNotPending
			return nil
		}

		switch decision {
		case DecisionApprove:
			newBalance, err := s.ledger.CreditRightsTx(ctx, tx, store.UserProfile{
				UserID:    payment.UserID,
				Username:  payment.Username,
				FirstName: payment.FirstName,
			}, payment.PackageRights, payment.PackageID)
			if err != nil {
				return err
			}
			if err := s.payments.InsertCompleted(ctx, tx, store.CompletedPaymentInput{
				PendingPaymentID: payment.ID,
				UserID:           payment.UserID,
				PackageID:        payment.PackageID,
				PackageRights:    payment.PackageRights,
				RightsAdded:      payment.PackageRights,
				AmountMinor:      payment.AmountMinor,
				BalanceAfter:     newBalance,
				ApprovedBy:       adminID,
			}); err != nil {
				return err
			}
			rows, err := s.payments.MarkDecided(ctx, tx, payment.ID, models.PaymentStatusApproved, adminID)
			if err != nil {
				return err
			}
			if rows == 0 {
				// Unreachable while the row is locked, but a silent
				// zero here would mean a credit without a decision.
				return fmt.Errorf("payment %d changed state during approval", payment.ID)
			}
			if err := s.activity.Log(ctx, tx, payment.UserID, store.ActivityPaymentApproved,
				fmt.Sprintf("payment #%d approved, +%d rights", payment.ID, payment.PackageRights)); err != nil {
				return err
			}
			outcome.Applied = true
			outcome.NewBalance = newBalance
			return nil
		case DecisionReject:
			rows, err := s.payments.MarkDecided(ctx, tx, payment.ID, models.PaymentStatusRejected, adminID)
			if err != nil {
				return err
			}
			if rows == 0 {
				return fmt.Errorf("payment %d changed state during rejection", payment.ID)
			}
			if err := s.activity.Log(ctx, tx, payment.UserID, store.ActivityPaymentRejected,
				fmt.Sprintf("payment #%d rejected", payment.ID)); err != nil {
				return err
			}
			outcome.Applied = true
			return nil
		default:
			return fmt.Errorf("unknown decision %q", decision)
		}
	})
	if err != nil {
		return Outcome{}, err
	}
	if outcome.Applied && decision == DecisionApprove {
		s.ledger.BroadcastBalance(outcome.Payment.UserID, outcome.NewBalance)
	}
	return outcome, nil
}

func (s *Service) ListPending(ctx context.Context) ([]models.PendingPayment, error) {
	return s.payments.ListPending(ctx)
}

func (s *Service) CountPending(ctx context.Context) (int, error) {
	return s.payments.CountPending(ctx)
}
