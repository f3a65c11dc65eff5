package models

import "time"

// Escalation is a manual-review case opened when a transaction exhausts its
// retry budget (or an operator escalates explicitly). Closed only by a human.
type Escalation struct {
	ID            int              `gorm:"primary_key" json:"id"`
	TransactionID int              `gorm:"index;not null" json:"transaction_id"`
	MemberID      int              `gorm:"index;not null" json:"member_id"`
	Reason        string           `gorm:"size:500;not null" json:"reason"`
	AssignedTo    *string          `gorm:"size:100" json:"assigned_to"`
	Status        EscalationStatus `gorm:"size:20;index;default:'pending'" json:"status"`
	ResolvedAt    *time.Time       `json:"resolved_at"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}
