package operations

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

// Migrations returns the operations schema migrations
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create operations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS operations (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL,
					description TEXT,
					owner_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					status VARCHAR(32) NOT NULL DEFAULT 'active',
					is_active BOOLEAN NOT NULL DEFAULT true,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_operations_slug ON operations(slug);
				CREATE INDEX idx_operations_owner_id ON operations(owner_id);
			`,
		},
		{
			Version:     2,
			Description: "Create operation_invitations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS operation_invitations (
					id BIGSERIAL PRIMARY KEY,
					operation_id BIGINT NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
					email VARCHAR(255) NOT NULL,
					role VARCHAR(32) NOT NULL,
					token VARCHAR(64) NOT NULL UNIQUE,
					invited_by BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					invited_at TIMESTAMP NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP NOT NULL,
					accepted_at TIMESTAMP,
					accepted_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					UNIQUE(operation_id, email)
				);

				CREATE INDEX idx_operation_invitations_token ON operation_invitations(token);
				CREATE INDEX idx_operation_invitations_expires_at ON operation_invitations(expires_at);
			`,
		},
	}
}

// RunMigrations applies all operations migrations in order
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, m := range Migrations() {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("operations migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	return nil
}
