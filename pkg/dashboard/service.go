package dashboard

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Summary is the operation overview shown on the dashboard landing page.
type Summary struct {
	OperationID       int64     `json:"operation_id"`
	TotalOrders       int64     `json:"total_orders"`
	PendingOrders     int64     `json:"pending_orders"`
	RevenueCents      int64     `json:"revenue_cents"`
	OpenTickets       int64     `json:"open_tickets"`
	ActiveProducts    int64     `json:"active_products"`
	ActiveCampaigns   int64     `json:"active_campaigns"`
	AdSpendCents      int64     `json:"ad_spend_cents"`
	OpenPools         int64     `json:"open_pools"`
	PoolRaisedCents   int64     `json:"pool_raised_cents"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// RecentOrder is a lightweight order row for the dashboard feed.
type RecentOrder struct {
	ID           int64     `json:"id"`
	Reference    string    `json:"reference"`
	CustomerName string    `json:"customer_name"`
	Status       string    `json:"status"`
	TotalCents   int64     `json:"total_cents"`
	CreatedAt    time.Time `json:"created_at"`
}

// Service produces read-only aggregates across an operation's data.
type Service struct {
	db *sql.DB
}

// NewService creates a dashboard service backed by the given database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetSummary aggregates order, product, campaign and pool figures for
// an operation. Revenue counts paid and shipped orders only.
func (s *Service) GetSummary(ctx context.Context, operationID int64) (*Summary, error) {
	summary := &Summary{
		OperationID: operationID,
		GeneratedAt: time.Now().UTC(),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status IN ('paid', 'shipped') THEN total_cents ELSE 0 END), 0)
		FROM orders
		WHERE operation_id = $1
	`, operationID).Scan(&summary.TotalOrders, &summary.PendingOrders, &summary.RevenueCents)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM order_tickets WHERE operation_id = $1 AND status = 'open'`,
		operationID).Scan(&summary.OpenTickets)
	if err != nil {
		return nil, fmt.Errorf("failed to count open tickets: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE operation_id = $1 AND is_active = true`,
		operationID).Scan(&summary.ActiveProducts)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(spent_cents), 0)
		FROM ad_campaigns
		WHERE operation_id = $1
	`, operationID).Scan(&summary.ActiveCampaigns, &summary.AdSpendCents)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate campaigns: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN status = 'open' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(raised_cents), 0)
		FROM investment_pools
		WHERE operation_id = $1
	`, operationID).Scan(&summary.OpenPools, &summary.PoolRaisedCents)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate pools: %w", err)
	}

	return summary, nil
}

// RecentOrders returns the most recent orders for the dashboard feed.
func (s *Service) RecentOrders(ctx context.Context, operationID int64, limit int) ([]*RecentOrder, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT id, reference, customer_name, status, total_cents, created_at
		FROM orders
		WHERE operation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, operationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent orders: %w", err)
	}
	defer rows.Close()

	var orders []*RecentOrder
	for rows.Next() {
		order := &RecentOrder{}
		if err := rows.Scan(&order.ID, &order.Reference, &order.CustomerName,
			&order.Status, &order.TotalCents, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recent order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
