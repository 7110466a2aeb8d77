package postgres

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// InitSchema applies the embedded schema. Every statement is idempotent,
// so this runs on startup and on demand (admin initdb) alike.
func InitSchema(ctx context.Context, db *DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
