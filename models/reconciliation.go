package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reconciliation records one expected-vs-received pass for a calendar date.
// discrepancy_amount is always total_expected - total_received.
type Reconciliation struct {
	ID                int                  `gorm:"primary_key" json:"id"`
	Date              time.Time            `gorm:"type:date;index:idx_recon_date_source,unique" json:"date"`
	Source            ReconciliationSource `gorm:"size:20;index:idx_recon_date_source,unique;default:'transactions'" json:"source"`
	TotalExpected     decimal.Decimal      `gorm:"type:decimal(14,2);default:0" json:"total_expected"`
	TotalReceived     decimal.Decimal      `gorm:"type:decimal(14,2);default:0" json:"total_received"`
	MatchedCount      int                  `gorm:"default:0" json:"matched_count"`
	UnmatchedCount    int                  `gorm:"default:0" json:"unmatched_count"`
	DiscrepancyAmount decimal.Decimal      `gorm:"type:decimal(14,2);default:0" json:"discrepancy_amount"`
	Status            ReconciliationStatus `gorm:"size:20;index;default:'pending'" json:"status"`
	PerformedBy       int                  `gorm:"index" json:"performed_by"`
	CompletedAt       *time.Time           `json:"completed_at"`
	CreatedAt         time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time            `gorm:"autoUpdateTime" json:"updated_at"`

	Discrepancies []Discrepancy `gorm:"foreignKey:ReconciliationID" json:"discrepancies,omitempty"`
}

// Discrepancy is one member's expected-vs-received mismatch found during
// reconciliation. Created automatically; resolved only by an explicit
// operator action.
type Discrepancy struct {
	ID               int             `gorm:"primary_key" json:"id"`
	ReconciliationID int             `gorm:"index;not null" json:"reconciliation_id"`
	MemberID         int             `gorm:"index;not null" json:"member_id"`
	TransactionID    *int            `gorm:"index" json:"transaction_id"`
	ExpectedAmount   decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"expected_amount"`
	ReceivedAmount   decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"received_amount"`
	Difference       decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"difference"`
	Reason           string          `gorm:"size:500" json:"reason"`
	Resolved         bool            `gorm:"index;default:false" json:"resolved"`
	Resolution       *string         `gorm:"size:100" json:"resolution"`
	ResolutionNotes  *string         `gorm:"type:text" json:"resolution_notes"`
	ResolvedBy       *int            `json:"resolved_by"`
	ResolvedAt       *time.Time      `json:"resolved_at"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
