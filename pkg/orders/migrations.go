package orders

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

// Migrations returns the orders schema migrations
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create orders table",
			SQL: `
				CREATE TABLE IF NOT EXISTS orders (
					id BIGSERIAL PRIMARY KEY,
					operation_id BIGINT NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
					reference VARCHAR(64) NOT NULL,
					customer_name VARCHAR(255) NOT NULL,
					customer_email VARCHAR(255),
					status VARCHAR(32) NOT NULL DEFAULT 'pending',
					total_cents BIGINT NOT NULL DEFAULT 0,
					currency VARCHAR(8) NOT NULL DEFAULT 'USD',
					notes TEXT,
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(operation_id, reference)
				);

				CREATE INDEX idx_orders_operation_id ON orders(operation_id);
				CREATE INDEX idx_orders_status ON orders(operation_id, status);
			`,
		},
		{
			Version:     2,
			Description: "Create order_tickets table",
			SQL: `
				CREATE TABLE IF NOT EXISTS order_tickets (
					id BIGSERIAL PRIMARY KEY,
					order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
					operation_id BIGINT NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
					subject VARCHAR(255) NOT NULL,
					body TEXT,
					status VARCHAR(16) NOT NULL DEFAULT 'open',
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_order_tickets_order_id ON order_tickets(order_id);
			`,
		},
	}
}

// RunMigrations applies all orders migrations in order
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, m := range Migrations() {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("orders migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	return nil
}
