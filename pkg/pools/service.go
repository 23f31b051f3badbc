package pools

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrPoolNotFound  = errors.New("pool not found")
	ErrInvalidStatus = errors.New("invalid pool status")
	ErrPoolClosed    = errors.New("pool is closed")
)

// Service manages investment pools for an operation.
type Service struct {
	db *sql.DB
}

// NewService creates a pools service backed by the given database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreatePool creates a pool in draft state unless one is given.
func (s *Service) CreatePool(ctx context.Context, pool *Pool) error {
	if pool.Status == "" {
		pool.Status = PoolStatusDraft
	}
	if !pool.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, pool.Status)
	}
	if pool.Currency == "" {
		pool.Currency = "USD"
	}

	now := time.Now().UTC()
	pool.CreatedAt = now
	pool.UpdatedAt = now

	query := `
		INSERT INTO investment_pools (operation_id, name, strategy, status, target_cents, raised_cents, currency, opens_at, closes_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, pool.OperationID, pool.Name, pool.Strategy,
		pool.Status, pool.TargetCents, pool.RaisedCents, pool.Currency,
		pool.OpensAt, pool.ClosesAt, pool.CreatedAt, pool.UpdatedAt).
		Scan(&pool.ID)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	return nil
}

// GetPool retrieves a pool by ID within an operation.
func (s *Service) GetPool(ctx context.Context, operationID, id int64) (*Pool, error) {
	query := `
		SELECT id, operation_id, name, strategy, status, target_cents, raised_cents, currency, opens_at, closes_at, created_at, updated_at
		FROM investment_pools
		WHERE id = $1 AND operation_id = $2
	`
	pool, err := scanPool(s.db.QueryRowContext(ctx, query, id, operationID))
	if err == sql.ErrNoRows {
		return nil, ErrPoolNotFound
	}
	return pool, err
}

// ListPools lists pools for an operation, newest first.
func (s *Service) ListPools(ctx context.Context, operationID int64) ([]*Pool, error) {
	query := `
		SELECT id, operation_id, name, strategy, status, target_cents, raised_cents, currency, opens_at, closes_at, created_at, updated_at
		FROM investment_pools
		WHERE operation_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	defer rows.Close()

	var pools []*Pool
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}

// UpdatePool applies a partial update to a pool.
func (s *Service) UpdatePool(ctx context.Context, operationID, id int64, updates *UpdatePoolRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *updates.Name)
		argPos++
	}
	if updates.Strategy != nil {
		setClauses = append(setClauses, fmt.Sprintf("strategy = $%d", argPos))
		args = append(args, *updates.Strategy)
		argPos++
	}
	if updates.Status != nil {
		if !updates.Status.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, *updates.Status)
		}
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *updates.Status)
		argPos++
	}
	if updates.TargetCents != nil {
		setClauses = append(setClauses, fmt.Sprintf("target_cents = $%d", argPos))
		args = append(args, *updates.TargetCents)
		argPos++
	}
	if updates.ClosesAt != nil {
		setClauses = append(setClauses, fmt.Sprintf("closes_at = $%d", argPos))
		args = append(args, *updates.ClosesAt)
		argPos++
	}
	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	args = append(args, id, operationID)
	query := fmt.Sprintf("UPDATE investment_pools SET %s WHERE id = $%d AND operation_id = $%d",
		strings.Join(setClauses, ", "), argPos, argPos+1)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update pool: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPoolNotFound
	}
	return nil
}

// RecordContribution adds to an open pool's raised total. Contributions
// to draft or closed pools are rejected.
func (s *Service) RecordContribution(ctx context.Context, operationID, id int64, amountCents int64) error {
	pool, err := s.GetPool(ctx, operationID, id)
	if err != nil {
		return err
	}
	if pool.Status != PoolStatusOpen {
		return fmt.Errorf("%w: pool %d is %s", ErrPoolClosed, id, pool.Status)
	}

	query := `UPDATE investment_pools SET raised_cents = raised_cents + $1, updated_at = $2 WHERE id = $3 AND operation_id = $4`
	if _, err := s.db.ExecContext(ctx, query, amountCents, time.Now().UTC(), id, operationID); err != nil {
		return fmt.Errorf("failed to record contribution: %w", err)
	}
	return nil
}

// DeletePool removes a pool.
func (s *Service) DeletePool(ctx context.Context, operationID, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM investment_pools WHERE id = $1 AND operation_id = $2`, id, operationID)
	if err != nil {
		return fmt.Errorf("failed to delete pool: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPoolNotFound
	}
	return nil
}

func scanPool(row interface{ Scan(dest ...interface{}) error }) (*Pool, error) {
	pool := &Pool{}
	var opensAt, closesAt sql.NullTime
	err := row.Scan(
		&pool.ID, &pool.OperationID, &pool.Name, &pool.Strategy, &pool.Status,
		&pool.TargetCents, &pool.RaisedCents, &pool.Currency,
		&opensAt, &closesAt, &pool.CreatedAt, &pool.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pool: %w", err)
	}
	if opensAt.Valid {
		pool.OpensAt = &opensAt.Time
	}
	if closesAt.Valid {
		pool.ClosesAt = &closesAt.Time
	}
	return pool, nil
}
