package ads

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

// Migrations returns the ads schema migrations
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create ad_campaigns table",
			SQL: `
				CREATE TABLE IF NOT EXISTS ad_campaigns (
					id BIGSERIAL PRIMARY KEY,
					operation_id BIGINT NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					channel VARCHAR(64) NOT NULL,
					status VARCHAR(32) NOT NULL DEFAULT 'draft',
					budget_cents BIGINT NOT NULL DEFAULT 0,
					spent_cents BIGINT NOT NULL DEFAULT 0,
					starts_at TIMESTAMP,
					ends_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_ad_campaigns_operation_id ON ad_campaigns(operation_id);
				CREATE INDEX idx_ad_campaigns_status ON ad_campaigns(operation_id, status);
			`,
		},
	}
}

// RunMigrations applies all ads migrations in order
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, m := range Migrations() {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("ads migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	return nil
}
