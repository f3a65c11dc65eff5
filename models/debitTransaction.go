package models

import (
	"time"

	"bitbucket.org/mmdatafocus/debitorders_backend/utils"
	"github.com/shopspring/decimal"
)

// MaxRetryCount bounds automatic and manual retries per transaction.
const MaxRetryCount = 3

// DebitTransaction is one member's collection within a run. Amount is
// immutable after creation; status only ever moves forward (see
// AllowedTransition), with failed -> processing reachable through retry only.
type DebitTransaction struct {
	ID                int               `gorm:"primary_key" json:"id"`
	RunID             int               `gorm:"index;not null" json:"run_id"`
	MemberID          int               `gorm:"index;not null" json:"member_id"`
	Amount            decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status            TransactionStatus `gorm:"size:20;index;default:'pending'" json:"status"`
	RetryCount        int               `gorm:"not null;default:0" json:"retry_count"`
	FailureReason     *string           `gorm:"size:500" json:"failure_reason"`
	ExternalReference *string           `gorm:"size:100;index" json:"external_reference"`
	ResponseLog       string            `gorm:"type:text" json:"response_log"`
	LastRetriedAt     *time.Time        `json:"last_retried_at"`
	ProcessedAt       *time.Time        `json:"processed_at"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// AllowedTransition reports whether a status change is a legal forward move.
// Re-applying the current status is allowed (and a no-op for the caller):
// the same outcome can arrive via webhook push and a status poll.
func AllowedTransition(from, to TransactionStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case TransactionStatusPending, TransactionStatusProcessing:
		return to == TransactionStatusProcessing && from == TransactionStatusPending ||
			to == TransactionStatusSuccessful ||
			to == TransactionStatusFailed ||
			to == TransactionStatusReversed
	case TransactionStatusSuccessful:
		// A settled collection can still be reversed by the bank.
		return to == TransactionStatusReversed
	case TransactionStatusFailed:
		// Only retry moves a failed transaction, and retry is its own path.
		return false
	case TransactionStatusReversed:
		return false
	}
	return false
}

// CanRetry is the guard for both manual and scheduled retries.
func (t *DebitTransaction) CanRetry() error {
	if t.Status != TransactionStatusFailed {
		return utils.ErrInvalidStateForRetry
	}
	if t.RetryCount >= MaxRetryCount {
		return utils.ErrMaxRetriesExceeded
	}
	return nil
}
