package models

import (
	"log"

	"bitbucket.org/mmdatafocus/debitorders_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Member{},
		&DebitRun{}, &DebitTransaction{},
		&Escalation{},
		&WebhookLog{},
		&Reconciliation{}, &Discrepancy{},
		&AuditEventRecord{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
