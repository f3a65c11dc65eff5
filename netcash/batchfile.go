package netcash

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/debitorders_backend/models"
	"github.com/shopspring/decimal"
)

// Netcash two-day/same-day debit-order batch file. Tab-delimited, CRLF line
// endings, amounts in integer cents. Record order is fixed: one H line, one
// K line, one T line per member, one F line.

const (
	recordHeader      = "H"
	recordKey         = "K"
	recordTransaction = "T"
	recordFooter      = "F"

	footerTrailerCode = "9999"
)

// Field-id tokens of the K record, one per T-record column.
var keyFieldIDs = []string{
	"101", "102", "110", "111", "121", "122", "123", "124", "125",
	"131", "132", "133", "134", "135",
}

var (
	ErrMissingHeader      = errors.New("batch file is missing its header record")
	ErrMissingKey         = errors.New("batch file is missing its key record")
	ErrMissingFooter      = errors.New("batch file is missing its footer record")
	ErrNoTransactionLines = errors.New("batch file has no transaction records")
	ErrEmptyBatchFile     = errors.New("batch file is empty")
)

// BatchLine is one member's T record.
type BatchLine struct {
	AccountReference string
	AccountName      string
	AccountHolder    string
	BankName         string
	BranchCode       string
	AccountNumber    string
	Amount           decimal.Decimal
	Email            string
	BrokerGroup      string
	MemberNumber     string
	NextDebitDate    time.Time
}

// AccountTypeCode derives the Netcash account-type code from the bank name:
// "1" for savings-book institutions, "2" (current/cheque) otherwise.
func AccountTypeCode(bankName string) string {
	if strings.Contains(strings.ToLower(bankName), "savings") {
		return "1"
	}
	return "2"
}

// AmountInCents converts a rand amount to the integer cents Netcash expects.
func AmountInCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// EncodeBatchFile renders the full batch file.
func EncodeBatchFile(serviceKey, vendorKey, batchName string, batchType models.BatchType, actionDate time.Time, lines []BatchLine) string {
	var b strings.Builder

	// H record: service key, file format version, instruction, batch name,
	// action date (CCYYMMDD), software vendor key.
	writeRecord(&b,
		recordHeader,
		serviceKey,
		"1",
		batchType.Instruction(),
		batchName,
		actionDate.Format("20060102"),
		vendorKey,
	)

	writeRecord(&b, append([]string{recordKey}, keyFieldIDs...)...)

	total := decimal.Zero
	for _, line := range lines {
		nextDebit := ""
		if !line.NextDebitDate.IsZero() {
			nextDebit = line.NextDebitDate.Format("20060102")
		}
		writeRecord(&b,
			recordTransaction,
			line.AccountReference,
			line.AccountName,
			"1",
			line.AccountHolder,
			AccountTypeCode(line.BankName),
			line.BranchCode,
			"0",
			line.AccountNumber,
			"",
			fmt.Sprintf("%d", AmountInCents(line.Amount)),
			line.Email,
			line.BrokerGroup,
			line.MemberNumber,
			nextDebit,
		)
		total = total.Add(line.Amount)
	}

	writeRecord(&b,
		recordFooter,
		fmt.Sprintf("%d", len(lines)),
		fmt.Sprintf("%d", AmountInCents(total)),
		footerTrailerCode,
	)

	return b.String()
}

func writeRecord(b *strings.Builder, fields ...string) {
	b.WriteString(strings.Join(fields, "\t"))
	b.WriteString("\r\n")
}

// ValidateBatchFile checks structural integrity before any network call:
// line 1 must be the H record, line 2 the K record, the last line the F
// record, with at least one T record between them.
func ValidateBatchFile(contents string) error {
	lines := strings.Split(contents, "\r\n")
	// Files end with a trailing CRLF; drop the empty tail.
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ErrEmptyBatchFile
	}

	if !strings.HasPrefix(lines[0], recordHeader+"\t") {
		return ErrMissingHeader
	}
	if len(lines) < 2 || !strings.HasPrefix(lines[1], recordKey+"\t") {
		return ErrMissingKey
	}
	if !strings.HasPrefix(lines[len(lines)-1], recordFooter+"\t") {
		return ErrMissingFooter
	}

	for _, line := range lines[2 : len(lines)-1] {
		if strings.HasPrefix(line, recordTransaction+"\t") {
			return nil
		}
	}
	return ErrNoTransactionLines
}
