package pools

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

// Migrations returns the pools schema migrations
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create investment_pools table",
			SQL: `
				CREATE TABLE IF NOT EXISTS investment_pools (
					id BIGSERIAL PRIMARY KEY,
					operation_id BIGINT NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					strategy VARCHAR(64) NOT NULL,
					status VARCHAR(32) NOT NULL DEFAULT 'draft',
					target_cents BIGINT NOT NULL DEFAULT 0,
					raised_cents BIGINT NOT NULL DEFAULT 0,
					currency VARCHAR(8) NOT NULL DEFAULT 'USD',
					opens_at TIMESTAMP,
					closes_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_investment_pools_operation_id ON investment_pools(operation_id);
			`,
		},
	}
}

// RunMigrations applies all pools migrations in order
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, m := range Migrations() {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("pools migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	return nil
}
