package seed

import (
	"context"
	"fmt"

	"github.com/johnwards/pipemon/internal/database"
)

// Seed inserts all standard seed data into the database. It is idempotent:
// existing rows are left untouched.
func Seed(ctx context.Context, db *database.DB) error {
	if err := HealthScores(ctx, db); err != nil {
		return fmt.Errorf("seed health scores: %w", err)
	}
	if err := Metrics(ctx, db); err != nil {
		return fmt.Errorf("seed metrics: %w", err)
	}
	return nil
}

// Reset deletes all data rows and seeds again.
func Reset(ctx context.Context, db *database.DB) error {
	for _, table := range database.Tables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil { //nolint:gosec // table names are hardcoded constants
			return fmt.Errorf("clear table %s: %w", table, err)
		}
	}
	return Seed(ctx, db)
}
