package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type StatementLineType string

const (
	StatementLineTypeCredit StatementLineType = "credit"
	StatementLineTypeDebit  StatementLineType = "debit"
)

// BankStatementLine is one line of the scheme's bank statement, supplied by
// the caller of the statement-based reconciliation. Lines are not persisted;
// only the resulting reconciliation and its discrepancies are.
type BankStatementLine struct {
	Reference   string            `json:"reference"`
	Description string            `json:"description"`
	Amount      decimal.Decimal   `json:"amount"`
	Date        time.Time         `json:"date"`
	Type        StatementLineType `json:"type"`
}

// StatementMatch is the outcome of matching one statement line against the
// collected payments for the date.
type StatementMatch struct {
	Line          BankStatementLine `json:"line"`
	TransactionID *int              `json:"transaction_id"`
	Confidence    MatchConfidence   `json:"confidence"`
	Reason        string            `json:"reason"`
}
