package integrations

import "time"

// ConnectionStatus represents the health of a third-party connection.
type ConnectionStatus string

const (
	StatusConnected ConnectionStatus = "connected"
	StatusError     ConnectionStatus = "error"
	StatusDisabled  ConnectionStatus = "disabled"
)

// Connection is a configured link to an external provider, scoped to
// an operation. Config holds provider-specific settings; secrets are
// referenced indirectly, never stored inline.
type Connection struct {
	ID          int64            `json:"id"`
	OperationID int64            `json:"operation_id"`
	Provider    string           `json:"provider"`
	Name        string           `json:"name"`
	Status      ConnectionStatus `json:"status"`
	Config      map[string]any   `json:"config,omitempty"`
	LastError   string           `json:"last_error,omitempty"`
	LastSyncAt  *time.Time       `json:"last_sync_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// CreateConnectionRequest is the payload for creating a connection.
type CreateConnectionRequest struct {
	Provider string         `json:"provider"`
	Name     string         `json:"name"`
	Config   map[string]any `json:"config,omitempty"`
}

// UpdateConnectionRequest is the payload for updating a connection.
// Nil fields are left unchanged.
type UpdateConnectionRequest struct {
	Name   *string        `json:"name,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}
