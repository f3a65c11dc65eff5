package netcash

import (
	"errors"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/debitorders_backend/models"
	"github.com/shopspring/decimal"
)

func sampleLines() []BatchLine {
	return []BatchLine{
		{
			AccountReference: "M001",
			AccountName:      "Thandi Nkosi",
			AccountHolder:    "Thandi Nkosi",
			BankName:         "Standard Bank",
			BranchCode:       "051001",
			AccountNumber:    "1234567890",
			Amount:           decimal.RequireFromString("450.50"),
			Email:            "thandi@example.com",
			BrokerGroup:      "GROUP-A",
			MemberNumber:     "M001",
			NextDebitDate:    time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			AccountReference: "M002",
			AccountName:      "Sipho Dlamini",
			AccountHolder:    "Sipho Dlamini",
			BankName:         "Capitec Savings",
			BranchCode:       "470010",
			AccountNumber:    "9876543210",
			Amount:           decimal.RequireFromString("199.99"),
			Email:            "sipho@example.com",
			BrokerGroup:      "GROUP-B",
			MemberNumber:     "M002",
		},
	}
}

func TestEncodeBatchFile_Layout(t *testing.T) {
	contents := EncodeBatchFile("SVC-KEY", "VENDOR-KEY", "DEBIT-20240304-AB12CD34",
		models.BatchTypeTwoDay, time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), sampleLines())

	if !strings.HasSuffix(contents, "\r\n") {
		t.Fatal("file must end with CRLF")
	}
	lines := strings.Split(strings.TrimSuffix(contents, "\r\n"), "\r\n")
	if len(lines) != 5 {
		t.Fatalf("expected H, K, 2xT, F = 5 lines, got %d", len(lines))
	}

	header := strings.Split(lines[0], "\t")
	wantHeader := []string{"H", "SVC-KEY", "1", "Two Day", "DEBIT-20240304-AB12CD34", "20240304", "VENDOR-KEY"}
	if len(header) != len(wantHeader) {
		t.Fatalf("header has %d fields, want %d", len(header), len(wantHeader))
	}
	for i := range wantHeader {
		if header[i] != wantHeader[i] {
			t.Errorf("header[%d] = %q, want %q", i, header[i], wantHeader[i])
		}
	}

	key := strings.Split(lines[1], "\t")
	if key[0] != "K" || len(key) != 15 {
		t.Fatalf("key record malformed: %v", key)
	}

	first := strings.Split(lines[2], "\t")
	if first[0] != "T" {
		t.Fatalf("expected T record, got %q", first[0])
	}
	if first[10] != "45050" {
		t.Errorf("amount field = %q, want integer cents 45050", first[10])
	}
	if first[5] != "2" {
		t.Errorf("Standard Bank account type = %q, want current (2)", first[5])
	}
	footer := strings.Split(lines[len(lines)-1], "\t")
	if footer[0] != "F" {
		t.Fatalf("expected F record, got %q", footer[0])
	}
	if footer[1] != "2" {
		t.Errorf("footer count = %q, want 2", footer[1])
	}
	// 450.50 + 199.99 = 650.49 -> 65049 cents.
	if footer[2] != "65049" {
		t.Errorf("footer total = %q, want 65049", footer[2])
	}
	if footer[3] != "9999" {
		t.Errorf("footer trailer = %q, want 9999", footer[3])
	}
}

func TestEncodeBatchFile_SameDayInstruction(t *testing.T) {
	contents := EncodeBatchFile("k", "v", "b", models.BatchTypeSameDay,
		time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), sampleLines()[:1])
	header := strings.Split(strings.Split(contents, "\r\n")[0], "\t")
	if header[3] != "Same Day" {
		t.Fatalf("instruction = %q, want Same Day", header[3])
	}
}

func TestAccountTypeCode(t *testing.T) {
	if got := AccountTypeCode("Capitec Savings"); got != "1" {
		t.Errorf("savings bank code = %q, want 1", got)
	}
	if got := AccountTypeCode("FNB"); got != "2" {
		t.Errorf("current bank code = %q, want 2", got)
	}
}

func TestAmountInCents(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"450.50", 45050},
		{"0.01", 1},
		{"100", 10000},
		{"33.335", 3334}, // rounds half up
	}
	for _, tt := range tests {
		if got := AmountInCents(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("AmountInCents(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestValidateBatchFile(t *testing.T) {
	valid := EncodeBatchFile("k", "v", "b", models.BatchTypeTwoDay,
		time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), sampleLines())

	lines := strings.Split(strings.TrimSuffix(valid, "\r\n"), "\r\n")
	join := func(ls []string) string { return strings.Join(ls, "\r\n") + "\r\n" }

	tests := []struct {
		name     string
		contents string
		want     error
	}{
		{"valid file", valid, nil},
		{"empty file", "", ErrEmptyBatchFile},
		{"missing header", join(lines[1:]), ErrMissingHeader},
		{"missing key record", join(append([]string{lines[0]}, lines[2:]...)), ErrMissingKey},
		{"missing footer", join(lines[:len(lines)-1]), ErrMissingFooter},
		{"no transactions", join([]string{lines[0], lines[1], lines[len(lines)-1]}), ErrNoTransactionLines},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchFile(tt.contents)
			if !errors.Is(err, tt.want) {
				t.Errorf("ValidateBatchFile = %v, want %v", err, tt.want)
			}
		})
	}
}
