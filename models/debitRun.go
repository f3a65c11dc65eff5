package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DebitRun is one generated batch file plus the set of transactions submitted
// together. total_amount and member_count are fixed at generation time and
// must always equal the sum/count of the run's transactions.
type DebitRun struct {
	ID                int             `gorm:"primary_key" json:"id"`
	RunDate           time.Time       `gorm:"type:date;index;not null" json:"run_date"`
	BatchName         string          `gorm:"size:100;uniqueIndex;not null" json:"batch_name"`
	BatchType         BatchType       `gorm:"size:20;not null;default:'two_day'" json:"batch_type"`
	MemberCount       int             `gorm:"not null" json:"member_count"`
	TotalAmount       decimal.Decimal `gorm:"type:decimal(14,2);default:0" json:"total_amount"`
	FilePath          string          `gorm:"size:500" json:"file_path"`
	Status            RunStatus       `gorm:"size:20;index;default:'pending'" json:"status"`
	ExternalReference *string         `gorm:"size:100;index" json:"external_reference"`
	ErrorMessage      *string         `gorm:"type:text" json:"error_message"`
	SubmittedAt       *time.Time      `json:"submitted_at"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Transactions []DebitTransaction `gorm:"foreignKey:RunID" json:"transactions,omitempty"`
}
