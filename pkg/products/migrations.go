package products

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the products schema migrations
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create products table",
			SQL: `
				CREATE TABLE IF NOT EXISTS products (
					id BIGSERIAL PRIMARY KEY,
					operation_id BIGINT NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
					sku VARCHAR(64) NOT NULL,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					price_cents BIGINT NOT NULL DEFAULT 0,
					currency VARCHAR(8) NOT NULL DEFAULT 'USD',
					stock INTEGER NOT NULL DEFAULT 0,
					is_active BOOLEAN NOT NULL DEFAULT true,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(operation_id, sku)
				);

				CREATE INDEX idx_products_operation_id ON products(operation_id);
			`,
		},
	}
}

// RunMigrations applies all products migrations in order
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, m := range Migrations() {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("products migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	return nil
}
