package integrations

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

// Migrations returns the integrations schema migrations
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create integration_connections table",
			SQL: `
				CREATE TABLE IF NOT EXISTS integration_connections (
					id BIGSERIAL PRIMARY KEY,
					operation_id BIGINT NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
					provider VARCHAR(64) NOT NULL,
					name VARCHAR(255) NOT NULL,
					status VARCHAR(32) NOT NULL DEFAULT 'connected',
					config JSONB NOT NULL DEFAULT '{}',
					last_error TEXT,
					last_sync_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_integration_connections_operation_id ON integration_connections(operation_id);
			`,
		},
	}
}

// RunMigrations applies all integrations migrations in order
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, m := range Migrations() {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("integrations migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	return nil
}
