package models

import "testing"

func TestMapProcessorStatus(t *testing.T) {
	tests := []struct {
		external string
		want     TransactionStatus
	}{
		{"APPROVED", TransactionStatusSuccessful},
		{"SUCCESS", TransactionStatusSuccessful},
		{"successful", TransactionStatusSuccessful},
		{"DECLINED", TransactionStatusFailed},
		{"failed", TransactionStatusFailed},
		{"REJECTED", TransactionStatusFailed},
		{"REVERSED", TransactionStatusReversed},
		{"PROCESSING", TransactionStatusProcessing},
		{" Approved ", TransactionStatusSuccessful},
		{"SETTLED", TransactionStatusPending}, // unknown tokens never move a transaction
		{"", TransactionStatusPending},
	}
	for _, tt := range tests {
		if got := MapProcessorStatus(tt.external); got != tt.want {
			t.Errorf("MapProcessorStatus(%q) = %s, want %s", tt.external, got, tt.want)
		}
	}
}

func TestMapProcessorBatchStatus(t *testing.T) {
	tests := []struct {
		external string
		want     RunStatus
	}{
		{"COMPLETED", RunStatusCompleted},
		{"complete", RunStatusCompleted},
		{"SUCCESS", RunStatusCompleted},
		{"DECLINED", RunStatusFailed},
		{"PROCESSING", RunStatusSubmitted},
		{"WHATEVER", RunStatusPending},
	}
	for _, tt := range tests {
		if got := MapProcessorBatchStatus(tt.external); got != tt.want {
			t.Errorf("MapProcessorBatchStatus(%q) = %s, want %s", tt.external, got, tt.want)
		}
	}
}

func TestAllowedTransition(t *testing.T) {
	tests := []struct {
		from, to TransactionStatus
		want     bool
	}{
		{TransactionStatusPending, TransactionStatusProcessing, true},
		{TransactionStatusPending, TransactionStatusSuccessful, true},
		{TransactionStatusPending, TransactionStatusFailed, true},
		{TransactionStatusProcessing, TransactionStatusSuccessful, true},
		{TransactionStatusProcessing, TransactionStatusFailed, true},
		{TransactionStatusProcessing, TransactionStatusReversed, true},
		{TransactionStatusSuccessful, TransactionStatusReversed, true},

		// Same-status redelivery is always legal.
		{TransactionStatusSuccessful, TransactionStatusSuccessful, true},
		{TransactionStatusFailed, TransactionStatusFailed, true},

		// Backward and out-of-band moves are not.
		{TransactionStatusSuccessful, TransactionStatusFailed, false},
		{TransactionStatusSuccessful, TransactionStatusPending, false},
		{TransactionStatusFailed, TransactionStatusProcessing, false}, // retry only
		{TransactionStatusFailed, TransactionStatusSuccessful, false},
		{TransactionStatusReversed, TransactionStatusSuccessful, false},
		{TransactionStatusReversed, TransactionStatusPending, false},
		{TransactionStatusProcessing, TransactionStatusPending, false},
	}
	for _, tt := range tests {
		if got := AllowedTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("AllowedTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCanRetry(t *testing.T) {
	tx := DebitTransaction{Status: TransactionStatusFailed, RetryCount: 0}
	if err := tx.CanRetry(); err != nil {
		t.Errorf("failed transaction with retries left: %v", err)
	}

	tx.RetryCount = MaxRetryCount
	if err := tx.CanRetry(); err == nil {
		t.Error("transaction at the retry cap must not be retryable")
	}

	tx = DebitTransaction{Status: TransactionStatusSuccessful}
	if err := tx.CanRetry(); err == nil {
		t.Error("successful transaction must not be retryable")
	}

	tx = DebitTransaction{Status: TransactionStatusProcessing}
	if err := tx.CanRetry(); err == nil {
		t.Error("in-flight transaction must not be retryable")
	}
}

func TestTransactionStatusIsTerminal(t *testing.T) {
	terminal := []TransactionStatus{TransactionStatusSuccessful, TransactionStatusFailed, TransactionStatusReversed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []TransactionStatus{TransactionStatusPending, TransactionStatusProcessing} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestBatchTypeInstruction(t *testing.T) {
	if got := BatchTypeSameDay.Instruction(); got != "Same Day" {
		t.Errorf("same day instruction = %q", got)
	}
	if got := BatchTypeTwoDay.Instruction(); got != "Two Day" {
		t.Errorf("two day instruction = %q", got)
	}
}
