package workflow

import (
	"errors"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/debitorders_backend/models"
	"bitbucket.org/mmdatafocus/debitorders_backend/utils"
)

func TestTransitionError(t *testing.T) {
	err := transitionError(models.TransactionStatusSuccessful, models.TransactionStatusFailed)

	if !errors.Is(err, utils.ErrInvalidStatusTransition) {
		t.Fatalf("got %v, want ErrInvalidStatusTransition", err)
	}
	// A rejected transition is not a retry-eligibility problem.
	if errors.Is(err, utils.ErrInvalidStateForRetry) {
		t.Fatal("transition rejection must not read as a retry rejection")
	}
	if !strings.Contains(err.Error(), "successful -> failed") {
		t.Errorf("error must name both states, got %q", err.Error())
	}
}

func TestAppendResponseLog(t *testing.T) {
	var tx models.DebitTransaction

	appendResponseLog(&tx, "DECLINED", "insufficient funds")
	if !strings.Contains(tx.ResponseLog, "DECLINED\tinsufficient funds") {
		t.Fatalf("log line missing status and response: %q", tx.ResponseLog)
	}
	if !strings.HasSuffix(tx.ResponseLog, "\r\n") {
		t.Fatalf("log lines are CRLF terminated: %q", tx.ResponseLog)
	}

	// An operator retry reason travels with the transaction.
	appendResponseLog(&tx, "manual_retry", "member updated bank details")
	lines := strings.Split(strings.TrimSuffix(tx.ResponseLog, "\r\n"), "\r\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2", len(lines))
	}
	if !strings.Contains(lines[1], "manual_retry\tmember updated bank details") {
		t.Errorf("retry reason missing from log: %q", lines[1])
	}
}

func TestAppendResponseLog_NoResponse(t *testing.T) {
	var tx models.DebitTransaction
	appendResponseLog(&tx, "APPROVED", "")
	if strings.Count(tx.ResponseLog, "\t") != 1 {
		t.Fatalf("empty response must not add a trailing field: %q", tx.ResponseLog)
	}
}
