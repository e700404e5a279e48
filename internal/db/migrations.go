package db

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// MigrationFS embeds the SQL migrations so binaries and tests do not depend on the working directory.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS

// Migrate applies all pending goose migrations.
func Migrate(database *sql.DB) error {
	goose.SetBaseFS(MigrationFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(database, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
