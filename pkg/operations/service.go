package operations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerline/backoffice/pkg/authz"
)

var (
	ErrOperationNotFound  = errors.New("operation not found")
	ErrMemberNotFound     = errors.New("member not found")
	ErrMemberExists       = errors.New("member already exists")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationAccepted = errors.New("invitation already accepted")
	ErrInvitationExpired  = errors.New("invitation expired")
)

// Service manages operations, their members and invitations. Member
// rows live in the access grant store so that every membership change
// goes through grant cache invalidation.
type Service struct {
	db     *sql.DB
	grants authz.Store
}

// NewService creates a Service backed by the given database. Member
// mutations are routed through the grant store.
func NewService(db *sql.DB, grants authz.Store) *Service {
	return &Service{db: db, grants: grants}
}

// CreateOperation creates a new operation and grants the owner role to
// its creator.
func (s *Service) CreateOperation(ctx context.Context, op *Operation) error {
	if op.Slug == "" {
		op.Slug = generateSlug(op.Name)
	}
	if op.Status == "" {
		op.Status = StatusActive
	}
	op.IsActive = true

	now := time.Now().UTC()
	op.CreatedAt = now
	op.UpdatedAt = now

	query := `
		INSERT INTO operations (name, slug, display_name, description, owner_id, status, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, op.Name, op.Slug, op.DisplayName,
		op.Description, op.OwnerID, op.Status, op.IsActive, op.CreatedAt, op.UpdatedAt).
		Scan(&op.ID)
	if err != nil {
		return fmt.Errorf("failed to create operation: %w", err)
	}

	if op.OwnerID != nil {
		grant := &authz.AccessGrant{
			UserID:      *op.OwnerID,
			OperationID: op.ID,
			Role:        authz.RoleOwner,
		}
		if err := s.grants.CreateGrant(ctx, grant); err != nil {
			return fmt.Errorf("failed to grant owner access: %w", err)
		}
	}

	return nil
}

// GetOperation retrieves an operation by ID.
func (s *Service) GetOperation(ctx context.Context, id int64) (*Operation, error) {
	query := `
		SELECT id, name, slug, display_name, description, owner_id, status, is_active, created_at, updated_at
		FROM operations
		WHERE id = $1
	`
	return s.scanOperation(s.db.QueryRowContext(ctx, query, id))
}

// GetOperationBySlug retrieves an operation by slug.
func (s *Service) GetOperationBySlug(ctx context.Context, slug string) (*Operation, error) {
	query := `
		SELECT id, name, slug, display_name, description, owner_id, status, is_active, created_at, updated_at
		FROM operations
		WHERE slug = $1
	`
	return s.scanOperation(s.db.QueryRowContext(ctx, query, slug))
}

// OperationExists reports whether an active operation with the given ID
// exists. Used by the request middleware to validate operation scope.
func (s *Service) OperationExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM operations WHERE id = $1 AND is_active = true)`
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check operation: %w", err)
	}
	return exists, nil
}

// ListOperationsForUser lists active operations the user holds a grant in.
func (s *Service) ListOperationsForUser(ctx context.Context, userID int64) ([]*Operation, error) {
	query := `
		SELECT DISTINCT o.id, o.name, o.slug, o.display_name, o.description, o.owner_id,
		       o.status, o.is_active, o.created_at, o.updated_at
		FROM operations o
		JOIN access_grants g ON o.id = g.operation_id
		WHERE g.user_id = $1 AND o.is_active = true
		ORDER BY o.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		op, err := s.scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// UpdateOperation applies a partial update to an operation.
func (s *Service) UpdateOperation(ctx context.Context, id int64, updates *UpdateOperationRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.DisplayName != nil {
		setClauses = append(setClauses, fmt.Sprintf("display_name = $%d", argPos))
		args = append(args, *updates.DisplayName)
		argPos++
	}
	if updates.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *updates.Description)
		argPos++
	}
	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	args = append(args, id)
	query := fmt.Sprintf("UPDATE operations SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update operation: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOperationNotFound
	}
	return nil
}

// DeleteOperation soft deletes an operation. Grants survive in the
// store but the operation no longer resolves as a valid scope.
func (s *Service) DeleteOperation(ctx context.Context, id int64) error {
	query := `UPDATE operations SET status = $1, is_active = false, updated_at = $2 WHERE id = $3 AND is_active = true`
	result, err := s.db.ExecContext(ctx, query, StatusDeleted, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOperationNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Service) scanOperation(row rowScanner) (*Operation, error) {
	op := &Operation{}
	var description sql.NullString
	var ownerID sql.NullInt64
	err := row.Scan(
		&op.ID, &op.Name, &op.Slug, &op.DisplayName, &description,
		&ownerID, &op.Status, &op.IsActive, &op.CreatedAt, &op.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrOperationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan operation: %w", err)
	}
	if description.Valid {
		op.Description = description.String
	}
	if ownerID.Valid {
		op.OwnerID = &ownerID.Int64
	}
	return op, nil
}

func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, slug)
	return slug
}
