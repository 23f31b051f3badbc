package authz

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

// Migrations returns the authz schema migrations
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create access_grants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS access_grants (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					operation_id BIGINT NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
					role VARCHAR(32) NOT NULL,
					permissions JSONB,
					granted_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, operation_id)
				);

				CREATE INDEX idx_access_grants_user_id ON access_grants(user_id);
				CREATE INDEX idx_access_grants_operation_id ON access_grants(operation_id);
			`,
		},
		{
			Version:     2,
			Description: "Constrain access_grants.role to the enumerated set",
			SQL: `
				ALTER TABLE access_grants
				ADD CONSTRAINT chk_access_grants_role
				CHECK (role IN ('owner', 'admin', 'viewer'));
			`,
		},
	}
}

// RunMigrations applies all authz migrations in order
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, m := range Migrations() {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("authz migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	return nil
}
