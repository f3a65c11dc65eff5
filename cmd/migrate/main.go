// migrate runs the schema migrations as a standalone job. The server runs
// them on startup by default; deployments that set SKIP_MIGRATIONS=true run
// this off-hours instead, so DDL never blocks live traffic.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/migrate
package main

import (
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/debitorders_backend/config"
	"bitbucket.org/mmdatafocus/debitorders_backend/models"
)

func main() {
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	models.MigrateTable()
	fmt.Println("migrations complete")
}
