package models

import "time"

type User struct {
	UserID                int64     `db:"user_id" json:"user_id"`
	Username              string    `db:"username" json:"username"`
	FirstName             string    `db:"first_name" json:"first_name"`
	LastName              string    `db:"last_name" json:"last_name"`
	PackageType           string    `db:"package_type" json:"package_type"`
	RemainingRights       int       `db:"remaining_rights" json:"remaining_rights"`
	TotalConversions      int       `db:"total_conversions" json:"total_conversions"`
	SuccessfulConversions int       `db:"successful_conversions" json:"successful_conversions"`
	FailedConversions     int       `db:"failed_conversions" json:"failed_conversions"`
	LastActivity          time.Time `db:"last_activity" json:"last_activity"`
	RegisteredAt          time.Time `db:"registered_at" json:"registered_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

type ConversionRecord struct {
	ID           string    `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	FileName     string    `db:"file_name" json:"file_name"`
	FileSize     int64     `db:"file_size" json:"file_size"`
	SourceFormat string    `db:"source_format" json:"source_format"`
	TargetFormat string    `db:"target_format" json:"target_format"`
	Status       string    `db:"status" json:"status"`
	DurationMS   int64     `db:"duration_ms" json:"duration_ms"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

const (
	ConversionStatusSuccess = "success"
	ConversionStatusFailed  = "failed"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusApproved = "approved"
	PaymentStatusRejected = "rejected"
)

type PendingPayment struct {
	ID            int64      `db:"id" json:"id"`
	UserID        int64      `db:"user_id" json:"user_id"`
	Username      string     `db:"username" json:"username"`
	FirstName     string     `db:"first_name" json:"first_name"`
	PackageID     string     `db:"package_id" json:"package_id"`
	PackageRights int        `db:"package_rights" json:"package_rights"`
	AmountMinor   int64      `db:"amount_minor" json:"amount_minor"`
	Status        string     `db:"status" json:"status"`
	RequestedAt   time.Time  `db:"requested_at" json:"requested_at"`
	DecidedAt     *time.Time `db:"decided_at" json:"decided_at,omitempty"`
	DecidedBy     *int64     `db:"decided_by" json:"decided_by,omitempty"`
}

type CompletedPayment struct {
	ID               int64     `db:"id" json:"id"`
	PendingPaymentID int64     `db:"pending_payment_id" json:"pending_payment_id"`
	UserID           int64     `db:"user_id" json:"user_id"`
	PackageID        string    `db:"package_id" json:"package_id"`
	PackageRights    int       `db:"package_rights" json:"package_rights"`
	RightsAdded      int       `db:"rights_added" json:"rights_added"`
	AmountMinor      int64     `db:"amount_minor" json:"amount_minor"`
	BalanceAfter     int       `db:"balance_after" json:"balance_after"`
	ApprovedBy       int64     `db:"approved_by" json:"approved_by"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

type ActivityEntry struct {
	ID           string    `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	ActivityType string    `db:"activity_type" json:"activity_type"`
	Details      string    `db:"details" json:"details"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
