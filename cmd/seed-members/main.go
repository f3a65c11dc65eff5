// seed-members populates a development database with a small member roster
// covering the interesting cases: active members across two broker groups, a
// savings account, a member with invalid bank details (excluded at batch
// generation) and a suspended member (excluded at selection).
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-members
package main

import (
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/debitorders_backend/config"
	"bitbucket.org/mmdatafocus/debitorders_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func main() {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	members := []models.Member{
		{
			MemberNumber: "M0001", Name: "Thandi Nkosi", AccountHolder: "Thandi Nkosi",
			Email: "thandi@example.com", BankName: "Standard Bank", AccountNumber: "1001001001",
			BranchCode: "051001", AccountType: "current", Premium: decimal.RequireFromString("450.50"),
			BrokerGroup: "GROUP-A", DebitOrderStatus: models.DebitOrderStatusActive,
		},
		{
			MemberNumber: "M0002", Name: "Sipho Dlamini", AccountHolder: "Sipho Dlamini",
			Email: "sipho@example.com", BankName: "Capitec Savings", AccountNumber: "2002002002",
			BranchCode: "470010", AccountType: "savings", Premium: decimal.RequireFromString("199.99"),
			BrokerGroup: "GROUP-A", DebitOrderStatus: models.DebitOrderStatusActive,
		},
		{
			MemberNumber: "M0003", Name: "Lerato Molefe", AccountHolder: "Lerato Molefe",
			Email: "lerato@example.com", BankName: "FNB", AccountNumber: "3003003003",
			BranchCode: "250655", AccountType: "current", Premium: decimal.RequireFromString("820.00"),
			BrokerGroup: "GROUP-B", DebitOrderStatus: models.DebitOrderStatusActive,
		},
		{
			// Branch code too short: excluded by batch validation, reported back.
			MemberNumber: "M0004", Name: "Ayanda Zulu", AccountHolder: "Ayanda Zulu",
			Email: "ayanda@example.com", BankName: "Nedbank", AccountNumber: "4004004004",
			BranchCode: "198", AccountType: "current", Premium: decimal.RequireFromString("310.25"),
			BrokerGroup: "GROUP-B", DebitOrderStatus: models.DebitOrderStatusActive,
		},
		{
			// Suspended: never selected for a batch.
			MemberNumber: "M0005", Name: "Pieter van Wyk", AccountHolder: "Pieter van Wyk",
			Email: "pieter@example.com", BankName: "Absa", AccountNumber: "5005005005",
			BranchCode: "632005", AccountType: "current", Premium: decimal.RequireFromString("275.00"),
			BrokerGroup: "GROUP-A", DebitOrderStatus: models.DebitOrderStatusSuspended,
		},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		for i := range members {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "member_number"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "bank_name", "account_number", "branch_code", "premium", "broker_group", "debit_order_status"}),
			}).Create(&members[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seeding failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded %d members\n", len(members))
}
