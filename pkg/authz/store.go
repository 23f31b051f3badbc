package authz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrGrantNotFound is returned when no grant exists for a (user, operation) pair
var ErrGrantNotFound = errors.New("access grant not found")

// ErrInvalidRole is returned when a grant carries a role outside the enumerated set
var ErrInvalidRole = errors.New("invalid grant role")

// Store is the durable lookup of access grants. Reads must be consistent
// point reads; the resolver treats the store as the single source of truth.
type Store interface {
	// GetGrant returns the grant for (userID, operationID), or ErrGrantNotFound
	GetGrant(ctx context.Context, userID, operationID int64) (*AccessGrant, error)

	// CreateGrant inserts a new grant; the (user, operation) pair must be unique
	CreateGrant(ctx context.Context, grant *AccessGrant) error

	// UpdateGrant replaces the role and permissions of an existing grant
	UpdateGrant(ctx context.Context, grant *AccessGrant) error

	// DeleteGrant removes the grant for (userID, operationID)
	DeleteGrant(ctx context.Context, userID, operationID int64) error

	// ListGrants returns all grants for an operation
	ListGrants(ctx context.Context, operationID int64) ([]*AccessGrant, error)
}

// PostgresStore persists access grants in the access_grants table
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a grant store backed by the given database
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetGrant retrieves the grant for a (user, operation) pair
func (s *PostgresStore) GetGrant(ctx context.Context, userID, operationID int64) (*AccessGrant, error) {
	query := `
		SELECT id, user_id, operation_id, role, permissions, granted_by, created_at, updated_at
		FROM access_grants
		WHERE user_id = $1 AND operation_id = $2
	`

	grant, err := scanGrant(s.db.QueryRowContext(ctx, query, userID, operationID))
	if err == sql.ErrNoRows {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get access grant: %w", err)
	}

	return grant, nil
}

// CreateGrant inserts a new grant row
func (s *PostgresStore) CreateGrant(ctx context.Context, grant *AccessGrant) error {
	if !grant.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, grant.Role)
	}

	permissionsJSON, err := marshalPermissions(grant.Permissions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO access_grants (user_id, operation_id, role, permissions, granted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	now := time.Now()
	err = s.db.QueryRowContext(ctx, query,
		grant.UserID,
		grant.OperationID,
		string(grant.Role),
		permissionsJSON,
		grant.GrantedBy,
		now,
		now,
	).Scan(&grant.ID)

	if err != nil {
		return fmt.Errorf("failed to create access grant: %w", err)
	}

	grant.CreatedAt = now
	grant.UpdatedAt = now
	return nil
}

// UpdateGrant replaces the role and permissions for an existing grant
func (s *PostgresStore) UpdateGrant(ctx context.Context, grant *AccessGrant) error {
	if !grant.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, grant.Role)
	}

	permissionsJSON, err := marshalPermissions(grant.Permissions)
	if err != nil {
		return err
	}

	query := `
		UPDATE access_grants
		SET role = $1, permissions = $2, updated_at = $3
		WHERE user_id = $4 AND operation_id = $5
	`

	grant.UpdatedAt = time.Now()
	result, err := s.db.ExecContext(ctx, query,
		string(grant.Role),
		permissionsJSON,
		grant.UpdatedAt,
		grant.UserID,
		grant.OperationID,
	)
	if err != nil {
		return fmt.Errorf("failed to update access grant: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGrantNotFound
	}

	return nil
}

// DeleteGrant removes the grant for a (user, operation) pair
func (s *PostgresStore) DeleteGrant(ctx context.Context, userID, operationID int64) error {
	query := `DELETE FROM access_grants WHERE user_id = $1 AND operation_id = $2`
	result, err := s.db.ExecContext(ctx, query, userID, operationID)
	if err != nil {
		return fmt.Errorf("failed to delete access grant: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGrantNotFound
	}

	return nil
}

// ListGrants returns all grants for an operation, oldest first
func (s *PostgresStore) ListGrants(ctx context.Context, operationID int64) ([]*AccessGrant, error) {
	query := `
		SELECT id, user_id, operation_id, role, permissions, granted_by, created_at, updated_at
		FROM access_grants
		WHERE operation_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access grants: %w", err)
	}
	defer rows.Close()

	var grants []*AccessGrant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access grant: %w", err)
		}
		grants = append(grants, grant)
	}

	return grants, rows.Err()
}

// marshalPermissions serializes an optional permission set to a nullable JSON column
func marshalPermissions(ps *PermissionSet) (interface{}, error) {
	if ps == nil {
		return nil, nil
	}
	data, err := json.Marshal(ps)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal permissions: %w", err)
	}
	return string(data), nil
}

// scanGrant scans a grant from a database row
func scanGrant(scanner interface {
	Scan(dest ...interface{}) error
}) (*AccessGrant, error) {
	var grant AccessGrant
	var role string
	var permissionsJSON sql.NullString
	var grantedBy sql.NullInt64

	err := scanner.Scan(
		&grant.ID,
		&grant.UserID,
		&grant.OperationID,
		&role,
		&permissionsJSON,
		&grantedBy,
		&grant.CreatedAt,
		&grant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	grant.Role = Role(role)

	if permissionsJSON.Valid {
		var ps PermissionSet
		if err := json.Unmarshal([]byte(permissionsJSON.String), &ps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
		// A column holding the JSON literal null means no override, the
		// same as SQL NULL. Only a JSON object is an override.
		if ps != nil {
			grant.Permissions = &ps
		}
	}

	if grantedBy.Valid {
		id := grantedBy.Int64
		grant.GrantedBy = &id
	}

	return &grant, nil
}
