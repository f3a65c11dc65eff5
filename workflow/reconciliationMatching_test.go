package workflow

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/debitorders_backend/models"
	"github.com/shopspring/decimal"
)

func paymentOn(id int, amount string, day time.Time, ref string) (models.DebitTransaction, string) {
	processed := day.Add(10 * time.Hour)
	return models.DebitTransaction{
		ID:          id,
		MemberID:    id,
		Amount:      decimal.RequireFromString(amount),
		Status:      models.TransactionStatusSuccessful,
		ProcessedAt: &processed,
	}, ref
}

func TestMatchStatementLines_Tiers(t *testing.T) {
	day := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

	p1, r1 := paymentOn(1, "450.50", day, "TOK/M001")
	p2, r2 := paymentOn(2, "199.99", day, "TOK/M002")
	p3, r3 := paymentOn(3, "300.00", day, "TOK/M003")
	p4, r4 := paymentOn(4, "300.00", day, "TOK/M004")
	payments := []models.DebitTransaction{p1, p2, p3, p4}
	refs := map[int]string{1: r1, 2: r2, 3: r3, 4: r4}

	lines := []models.BankStatementLine{
		{Reference: "TOK/M001", Amount: decimal.RequireFromString("450.50"), Date: day, Type: models.StatementLineTypeCredit},
		{Reference: "TOK/M002", Amount: decimal.RequireFromString("200.00"), Date: day, Type: models.StatementLineTypeCredit},
		{Reference: "", Amount: decimal.RequireFromString("300.00"), Date: day, Type: models.StatementLineTypeCredit},
		{Reference: "", Amount: decimal.RequireFromString("999.99"), Date: day, Type: models.StatementLineTypeCredit},
		{Reference: "BANK-FEE", Amount: decimal.RequireFromString("15.00"), Date: day, Type: models.StatementLineTypeDebit},
	}

	matches := MatchStatementLines(lines, payments, refs)
	if len(matches) != len(lines) {
		t.Fatalf("got %d matches for %d lines", len(matches), len(lines))
	}

	// Reference and amount agree.
	if matches[0].Confidence != models.MatchConfidenceExact {
		t.Errorf("line 0 confidence = %s, want exact", matches[0].Confidence)
	}
	if matches[0].TransactionID == nil || *matches[0].TransactionID != 1 {
		t.Errorf("line 0 matched wrong transaction: %v", matches[0].TransactionID)
	}

	// Reference agrees, amount off by a cent.
	if matches[1].Confidence != models.MatchConfidenceProbable {
		t.Errorf("line 1 confidence = %s, want probable", matches[1].Confidence)
	}
	if matches[1].TransactionID == nil || *matches[1].TransactionID != 2 {
		t.Errorf("line 1 matched wrong transaction: %v", matches[1].TransactionID)
	}

	// No reference; two payments share amount and day.
	if matches[2].Confidence != models.MatchConfidencePossible {
		t.Errorf("line 2 confidence = %s, want possible (ambiguous)", matches[2].Confidence)
	}

	// Nothing fits.
	if matches[3].Confidence != models.MatchConfidenceNone {
		t.Errorf("line 3 confidence = %s, want none", matches[3].Confidence)
	}
	if matches[3].TransactionID != nil {
		t.Error("unmatched line must not carry a transaction id")
	}

	// Debit lines are never payments.
	if matches[4].Confidence != models.MatchConfidenceNone {
		t.Errorf("debit line confidence = %s, want none", matches[4].Confidence)
	}
	if matches[4].Reason != "not a payment" {
		t.Errorf("debit line reason = %q", matches[4].Reason)
	}
}

func TestMatchStatementLines_PaymentConsumedOnce(t *testing.T) {
	day := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	p1, r1 := paymentOn(1, "100.00", day, "TOK/M001")
	payments := []models.DebitTransaction{p1}
	refs := map[int]string{1: r1}

	lines := []models.BankStatementLine{
		{Reference: "TOK/M001", Amount: decimal.RequireFromString("100.00"), Date: day, Type: models.StatementLineTypeCredit},
		{Reference: "TOK/M001", Amount: decimal.RequireFromString("100.00"), Date: day, Type: models.StatementLineTypeCredit},
	}

	matches := MatchStatementLines(lines, payments, refs)
	if matches[0].Confidence != models.MatchConfidenceExact {
		t.Fatalf("first line = %s, want exact", matches[0].Confidence)
	}
	if matches[1].Confidence != models.MatchConfidenceNone {
		t.Fatalf("duplicate line = %s, want none (payment already consumed)", matches[1].Confidence)
	}
}

func TestMatchStatementLines_SingleAmountDateCandidate(t *testing.T) {
	day := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	p1, _ := paymentOn(1, "250.00", day, "")
	payments := []models.DebitTransaction{p1}

	lines := []models.BankStatementLine{
		{Amount: decimal.RequireFromString("250.00"), Date: day, Type: models.StatementLineTypeCredit},
	}
	matches := MatchStatementLines(lines, payments, map[int]string{})
	if matches[0].Confidence != models.MatchConfidenceProbable {
		t.Fatalf("confidence = %s, want probable", matches[0].Confidence)
	}
	if matches[0].TransactionID == nil || *matches[0].TransactionID != 1 {
		t.Fatal("expected the single candidate to be matched")
	}

	// A payment processed on another day is not a candidate.
	otherDay := day.AddDate(0, 0, 1)
	lines[0].Date = otherDay
	matches = MatchStatementLines(lines, payments, map[int]string{})
	if matches[0].Confidence != models.MatchConfidenceNone {
		t.Fatalf("confidence = %s, want none for a different day", matches[0].Confidence)
	}
}

func TestReconciliationWindow(t *testing.T) {
	// Time of day on the input is irrelevant; the window is the calendar date.
	in := time.Date(2024, time.March, 4, 15, 42, 7, 0, time.UTC)
	start, end := reconciliationWindow(in)

	if want := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if want := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}

	// Half-open: a transaction created at next midnight belongs to the next day.
	if !end.After(start.AddDate(0, 0, 1).Add(-time.Nanosecond)) {
		t.Error("window must cover the whole calendar date")
	}
	if end.Sub(start) != 24*time.Hour {
		t.Errorf("window length = %v, want 24h", end.Sub(start))
	}
}
