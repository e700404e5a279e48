package tests

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ir-comercio/ir-comercio-sistema/internal/db"
)

// portalTables lists every table the integration tests write to, children first.
var portalTables = []string{
	"login_attempts",
	"active_sessions",
	"authorized_devices",
	"ordens_compra",
	"produtos",
	"users",
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(database *sql.DB) error {
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// TruncateTables empties the portal and business tables for a clean test state.
func TruncateTables(ctx context.Context, database *sql.DB) error {
	query := "TRUNCATE TABLE "
	for i, table := range portalTables {
		if i > 0 {
			query += ", "
		}
		query += table
	}
	if _, err := database.ExecContext(ctx, query+" CASCADE"); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
