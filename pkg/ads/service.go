package ads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrInvalidStatus    = errors.New("invalid campaign status")
)

// Service manages ad campaigns for an operation.
type Service struct {
	db *sql.DB
}

// NewService creates an ads service backed by the given database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateCampaign creates a campaign in draft state unless one is given.
func (s *Service) CreateCampaign(ctx context.Context, campaign *Campaign) error {
	if campaign.Status == "" {
		campaign.Status = CampaignStatusDraft
	}
	if !campaign.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, campaign.Status)
	}

	now := time.Now().UTC()
	campaign.CreatedAt = now
	campaign.UpdatedAt = now

	query := `
		INSERT INTO ad_campaigns (operation_id, name, channel, status, budget_cents, spent_cents, starts_at, ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, campaign.OperationID, campaign.Name,
		campaign.Channel, campaign.Status, campaign.BudgetCents, campaign.SpentCents,
		campaign.StartsAt, campaign.EndsAt, campaign.CreatedAt, campaign.UpdatedAt).
		Scan(&campaign.ID)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// GetCampaign retrieves a campaign by ID within an operation.
func (s *Service) GetCampaign(ctx context.Context, operationID, id int64) (*Campaign, error) {
	query := `
		SELECT id, operation_id, name, channel, status, budget_cents, spent_cents, starts_at, ends_at, created_at, updated_at
		FROM ad_campaigns
		WHERE id = $1 AND operation_id = $2
	`
	campaign, err := scanCampaign(s.db.QueryRowContext(ctx, query, id, operationID))
	if err == sql.ErrNoRows {
		return nil, ErrCampaignNotFound
	}
	return campaign, err
}

// ListCampaigns lists campaigns for an operation, newest first. An
// empty status lists all of them.
func (s *Service) ListCampaigns(ctx context.Context, operationID int64, status CampaignStatus) ([]*Campaign, error) {
	query := `
		SELECT id, operation_id, name, channel, status, budget_cents, spent_cents, starts_at, ends_at, created_at, updated_at
		FROM ad_campaigns
		WHERE operation_id = $1
	`
	args := []interface{}{operationID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*Campaign
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, rows.Err()
}

// UpdateCampaign applies a partial update to a campaign.
func (s *Service) UpdateCampaign(ctx context.Context, operationID, id int64, updates *UpdateCampaignRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *updates.Name)
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
	if updates.BudgetCents != nil {
		setClauses = append(setClauses, fmt.Sprintf("budget_cents = $%d", argPos))
		args = append(args, *updates.BudgetCents)
		argPos++
	}
	if updates.EndsAt != nil {
		setClauses = append(setClauses, fmt.Sprintf("ends_at = $%d", argPos))
		args = append(args, *updates.EndsAt)
		argPos++
	}
	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	args = append(args, id, operationID)
	query := fmt.Sprintf("UPDATE ad_campaigns SET %s WHERE id = $%d AND operation_id = $%d",
		strings.Join(setClauses, ", "), argPos, argPos+1)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// RecordSpend adds to a campaign's spent total.
func (s *Service) RecordSpend(ctx context.Context, operationID, id int64, amountCents int64) error {
	query := `UPDATE ad_campaigns SET spent_cents = spent_cents + $1, updated_at = $2 WHERE id = $3 AND operation_id = $4`
	result, err := s.db.ExecContext(ctx, query, amountCents, time.Now().UTC(), id, operationID)
	if err != nil {
		return fmt.Errorf("failed to record spend: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// DeleteCampaign removes a campaign.
func (s *Service) DeleteCampaign(ctx context.Context, operationID, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM ad_campaigns WHERE id = $1 AND operation_id = $2`, id, operationID)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

func scanCampaign(row interface{ Scan(dest ...interface{}) error }) (*Campaign, error) {
	campaign := &Campaign{}
	var startsAt, endsAt sql.NullTime
	err := row.Scan(
		&campaign.ID, &campaign.OperationID, &campaign.Name, &campaign.Channel,
		&campaign.Status, &campaign.BudgetCents, &campaign.SpentCents,
		&startsAt, &endsAt, &campaign.CreatedAt, &campaign.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan campaign: %w", err)
	}
	if startsAt.Valid {
		campaign.StartsAt = &startsAt.Time
	}
	if endsAt.Valid {
		campaign.EndsAt = &endsAt.Time
	}
	return campaign, nil
}
