package models

import "strings"

// DebitOrderStatus is the member's debit-order standing. The member roster is
// owned by policy administration; this subsystem reads it and only ever flips
// the status to Failed when a transaction exhausts its retries.
type DebitOrderStatus string

const (
	DebitOrderStatusActive    DebitOrderStatus = "active"
	DebitOrderStatusPending   DebitOrderStatus = "pending"
	DebitOrderStatusSuspended DebitOrderStatus = "suspended"
	DebitOrderStatusFailed    DebitOrderStatus = "failed"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusSubmitted RunStatus = "submitted"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// BatchType selects the Netcash instruction class.
type BatchType string

const (
	BatchTypeSameDay BatchType = "same_day"
	BatchTypeTwoDay  BatchType = "two_day"
)

// Instruction returns the instruction token Netcash expects in the batch
// file header.
func (t BatchType) Instruction() string {
	if t == BatchTypeSameDay {
		return "Same Day"
	}
	return "Two Day"
}

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusSuccessful TransactionStatus = "successful"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusReversed   TransactionStatus = "reversed"
)

func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusSuccessful, TransactionStatusFailed, TransactionStatusReversed:
		return true
	}
	return false
}

type EscalationStatus string

const (
	EscalationStatusPending  EscalationStatus = "pending"
	EscalationStatusResolved EscalationStatus = "resolved"
)

type ReconciliationStatus string

const (
	ReconciliationStatusPending    ReconciliationStatus = "pending"
	ReconciliationStatusInProgress ReconciliationStatus = "in_progress"
	ReconciliationStatusCompleted  ReconciliationStatus = "completed"
)

// ReconciliationSource distinguishes the two input strategies of the engine:
// the daily transaction-status pass and the bank-statement cross-check.
type ReconciliationSource string

const (
	ReconciliationSourceTransactions ReconciliationSource = "transactions"
	ReconciliationSourceStatement    ReconciliationSource = "statement"
)

// MatchConfidence is the certainty tier assigned when matching a bank
// statement line to a collected payment.
type MatchConfidence string

const (
	MatchConfidenceExact    MatchConfidence = "exact"
	MatchConfidenceProbable MatchConfidence = "probable"
	MatchConfidencePossible MatchConfidence = "possible"
	MatchConfidenceNone     MatchConfidence = "none"
)

type OutboxPublishStatus = string

const (
	OutboxPublishStatusPending    OutboxPublishStatus = "PENDING"
	OutboxPublishStatusProcessing OutboxPublishStatus = "PROCESSING"
	OutboxPublishStatusSent       OutboxPublishStatus = "SENT"
	OutboxPublishStatusFailed     OutboxPublishStatus = "FAILED"
	OutboxPublishStatusDead       OutboxPublishStatus = "DEAD"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

// MapProcessorStatus translates the processor's transaction-status vocabulary
// to the internal one. Anything unrecognized maps to pending: an unknown
// token must never push a transaction forward.
func MapProcessorStatus(external string) TransactionStatus {
	switch strings.ToUpper(strings.TrimSpace(external)) {
	case "APPROVED", "SUCCESS", "SUCCESSFUL":
		return TransactionStatusSuccessful
	case "DECLINED", "FAILED", "REJECTED":
		return TransactionStatusFailed
	case "REVERSED":
		return TransactionStatusReversed
	case "PROCESSING":
		return TransactionStatusProcessing
	default:
		return TransactionStatusPending
	}
}

// MapProcessorBatchStatus is the same table applied to batch-level callbacks.
// PROCESSING keeps the run in submitted: a run has no processing state of
// its own.
func MapProcessorBatchStatus(external string) RunStatus {
	switch strings.ToUpper(strings.TrimSpace(external)) {
	case "APPROVED", "SUCCESS", "SUCCESSFUL", "COMPLETED", "COMPLETE":
		return RunStatusCompleted
	case "DECLINED", "FAILED", "REJECTED":
		return RunStatusFailed
	case "PROCESSING":
		return RunStatusSubmitted
	default:
		return RunStatusPending
	}
}
