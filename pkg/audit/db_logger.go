package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DBLogger writes audit events to the database. Logging failures are
// reported to the caller but must never block the guarded request;
// callers log and move on.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger and ensures the
// audit_logs table exists.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	logger := &DBLogger{db: db}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_logs table: %w", err)
	}
	return logger, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		user_id BIGINT,
		operation_id BIGINT,
		module VARCHAR(50),
		action VARCHAR(50),
		request_id VARCHAR(100),
		message TEXT,
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type ON audit_logs(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_operation_id ON audit_logs(operation_id);
	`
	_, err := l.db.Exec(query)
	return err
}

// Log writes an audit event.
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var metadataJSON interface{}
	if event.Metadata != nil {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadataJSON = string(data)
	}

	query := `
		INSERT INTO audit_logs (timestamp, event_type, status, user_id, operation_id, module, action, request_id, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := l.db.QueryRowContext(ctx, query, event.Timestamp, event.EventType, event.Status,
		event.UserID, event.OperationID, event.Module, event.Action,
		event.RequestID, event.Message, metadataJSON).
		Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// ListEvents queries the audit trail, newest first.
func (l *DBLogger) ListEvents(ctx context.Context, filter QueryFilter) ([]*Event, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if filter.EventType != "" {
		where = append(where, fmt.Sprintf("event_type = $%d", argPos))
		args = append(args, filter.EventType)
		argPos++
	}
	if filter.UserID != nil {
		where = append(where, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, *filter.UserID)
		argPos++
	}
	if filter.OperationID != nil {
		where = append(where, fmt.Sprintf("operation_id = $%d", argPos))
		args = append(args, *filter.OperationID)
		argPos++
	}
	if filter.Since != nil {
		where = append(where, fmt.Sprintf("timestamp >= $%d", argPos))
		args = append(args, *filter.Since)
		argPos++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, timestamp, event_type, status, user_id, operation_id, module, action, request_id, message, metadata
		FROM audit_logs
		WHERE %s
		ORDER BY timestamp DESC
		LIMIT $%d
	`, strings.Join(where, " AND "), argPos)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		var userID, operationID sql.NullInt64
		var module, action, requestID, message, metadataJSON sql.NullString
		if err := rows.Scan(&event.ID, &event.Timestamp, &event.EventType, &event.Status,
			&userID, &operationID, &module, &action, &requestID, &message, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if userID.Valid {
			event.UserID = &userID.Int64
		}
		if operationID.Valid {
			event.OperationID = &operationID.Int64
		}
		event.Module = module.String
		event.Action = action.String
		event.RequestID = requestID.String
		event.Message = message.String
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// PurgeBefore deletes audit events older than the cutoff and returns
// how many rows were removed.
func (l *DBLogger) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit events: %w", err)
	}
	return result.RowsAffected()
}
