package integrations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrConnectionNotFound = errors.New("connection not found")

// Service manages third-party connections for an operation.
type Service struct {
	db *sql.DB
}

// NewService creates an integrations service backed by the given database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateConnection registers a new connection in connected state.
func (s *Service) CreateConnection(ctx context.Context, conn *Connection) error {
	if conn.Status == "" {
		conn.Status = StatusConnected
	}

	configJSON, err := marshalConfig(conn.Config)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	query := `
		INSERT INTO integration_connections (operation_id, provider, name, status, config, last_error, last_sync_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query, conn.OperationID, conn.Provider, conn.Name,
		conn.Status, configJSON, conn.LastError, conn.LastSyncAt, conn.CreatedAt, conn.UpdatedAt).
		Scan(&conn.ID)
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}
	return nil
}

// GetConnection retrieves a connection by ID within an operation.
func (s *Service) GetConnection(ctx context.Context, operationID, id int64) (*Connection, error) {
	query := `
		SELECT id, operation_id, provider, name, status, config, last_error, last_sync_at, created_at, updated_at
		FROM integration_connections
		WHERE id = $1 AND operation_id = $2
	`
	conn, err := scanConnection(s.db.QueryRowContext(ctx, query, id, operationID))
	if err == sql.ErrNoRows {
		return nil, ErrConnectionNotFound
	}
	return conn, err
}

// ListConnections lists connections for an operation.
func (s *Service) ListConnections(ctx context.Context, operationID int64) ([]*Connection, error) {
	query := `
		SELECT id, operation_id, provider, name, status, config, last_error, last_sync_at, created_at, updated_at
		FROM integration_connections
		WHERE operation_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var conns []*Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

// UpdateConnection updates a connection's name or config.
func (s *Service) UpdateConnection(ctx context.Context, operationID, id int64, updates *UpdateConnectionRequest) error {
	conn, err := s.GetConnection(ctx, operationID, id)
	if err != nil {
		return err
	}

	if updates.Name != nil {
		conn.Name = *updates.Name
	}
	if updates.Config != nil {
		conn.Config = updates.Config
	}

	configJSON, err := marshalConfig(conn.Config)
	if err != nil {
		return err
	}

	query := `UPDATE integration_connections SET name = $1, config = $2, updated_at = $3 WHERE id = $4 AND operation_id = $5`
	if _, err := s.db.ExecContext(ctx, query, conn.Name, configJSON, time.Now().UTC(), id, operationID); err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}
	return nil
}

// SetStatus transitions a connection's status. An error message is
// recorded only for the error state and cleared otherwise.
func (s *Service) SetStatus(ctx context.Context, operationID, id int64, status ConnectionStatus, lastError string) error {
	if status != StatusError {
		lastError = ""
	}
	query := `UPDATE integration_connections SET status = $1, last_error = $2, updated_at = $3 WHERE id = $4 AND operation_id = $5`
	result, err := s.db.ExecContext(ctx, query, status, lastError, time.Now().UTC(), id, operationID)
	if err != nil {
		return fmt.Errorf("failed to set connection status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

// RecordSync stamps a successful sync on a connection.
func (s *Service) RecordSync(ctx context.Context, operationID, id int64) error {
	now := time.Now().UTC()
	query := `UPDATE integration_connections SET status = $1, last_error = '', last_sync_at = $2, updated_at = $3 WHERE id = $4 AND operation_id = $5`
	result, err := s.db.ExecContext(ctx, query, StatusConnected, now, now, id, operationID)
	if err != nil {
		return fmt.Errorf("failed to record sync: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

// DeleteConnection removes a connection.
func (s *Service) DeleteConnection(ctx context.Context, operationID, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM integration_connections WHERE id = $1 AND operation_id = $2`, id, operationID)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

func marshalConfig(config map[string]any) (string, error) {
	if config == nil {
		return "{}", nil
	}
	data, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

func scanConnection(row interface{ Scan(dest ...interface{}) error }) (*Connection, error) {
	conn := &Connection{}
	var configJSON string
	var lastError sql.NullString
	var lastSyncAt sql.NullTime
	err := row.Scan(
		&conn.ID, &conn.OperationID, &conn.Provider, &conn.Name, &conn.Status,
		&configJSON, &lastError, &lastSyncAt, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan connection: %w", err)
	}
	if configJSON != "" && configJSON != "{}" {
		if err := json.Unmarshal([]byte(configJSON), &conn.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	if lastError.Valid {
		conn.LastError = lastError.String
	}
	if lastSyncAt.Valid {
		conn.LastSyncAt = &lastSyncAt.Time
	}
	return conn, nil
}
