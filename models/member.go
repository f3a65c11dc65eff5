package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/debitorders_backend/config"
	"github.com/shopspring/decimal"
)

// Member is the roster entity owned by policy administration. This subsystem
// reads bank details, premium and scheduling fields, and writes back only the
// debit-order status and accumulated arrears.
type Member struct {
	ID               int              `gorm:"primary_key" json:"id"`
	MemberNumber     string           `gorm:"size:50;uniqueIndex;not null" json:"member_number"`
	Name             string           `gorm:"size:255;not null" json:"name"`
	AccountHolder    string           `gorm:"size:255" json:"account_holder"`
	Email            string           `gorm:"size:255" json:"email"`
	BankName         string           `gorm:"size:100" json:"bank_name"`
	AccountNumber    string           `gorm:"size:30" json:"account_number"`
	BranchCode       string           `gorm:"size:10" json:"branch_code"`
	AccountType      string           `gorm:"size:20" json:"account_type"`
	Premium          decimal.Decimal  `gorm:"type:decimal(12,2);default:0" json:"premium"`
	BrokerGroup      string           `gorm:"size:100;index" json:"broker_group"`
	DebitOrderStatus DebitOrderStatus `gorm:"size:20;index;default:'pending'" json:"debit_order_status"`
	NextDebitDate    *time.Time       `gorm:"type:date" json:"next_debit_date"`
	Arrears          decimal.Decimal  `gorm:"type:decimal(12,2);default:0" json:"arrears"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// EligibleMembers returns members due for collection on the strike date:
// active debit order, positive premium, and (optionally) one of the given
// broker groups. Members without a scheduled date are included; the roster
// leaves next_debit_date empty until the first successful collection.
func EligibleMembers(ctx context.Context, strikeDate time.Time, brokerGroups []string) ([]*Member, error) {
	db := config.GetDB()

	q := db.WithContext(ctx).Model(&Member{}).
		Where("debit_order_status = ?", DebitOrderStatusActive).
		Where("premium > 0").
		Where("next_debit_date IS NULL OR DATE(next_debit_date) <= ?", strikeDate.Format("2006-01-02"))
	if len(brokerGroups) > 0 {
		q = q.Where("broker_group IN ?", brokerGroups)
	}

	var members []*Member
	if err := q.Order("member_number ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}
