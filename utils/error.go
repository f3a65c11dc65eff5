package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// State-machine guards. These are deterministic rejections, not failures:
// the caller gets the signal and nothing is mutated.
var (
	ErrInvalidStateForRetry    = errors.New("transaction is not in a retryable state")
	ErrInvalidStatusTransition = errors.New("status transition not allowed")
	ErrMaxRetriesExceeded      = errors.New("maximum retry attempts reached")
	ErrAlreadyResolved         = errors.New("discrepancy already resolved")
	ErrAlreadyEscalated        = errors.New("transaction already has an open escalation")
	ErrNoValidMembers          = errors.New("no valid members for batch")
	ErrReconciliationExists    = errors.New("reconciliation already exists for date")
	ErrInvalidSignature        = errors.New("webhook signature verification failed")
	ErrUnknownWebhookType      = errors.New("unknown webhook type")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
