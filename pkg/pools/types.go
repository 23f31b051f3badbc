package pools

import "time"

// PoolStatus represents the lifecycle state of an investment pool.
type PoolStatus string

const (
	PoolStatusDraft  PoolStatus = "draft"
	PoolStatusOpen   PoolStatus = "open"
	PoolStatusClosed PoolStatus = "closed"
)

// Valid reports whether the status is one of the enumerated states.
func (s PoolStatus) Valid() bool {
	switch s {
	case PoolStatusDraft, PoolStatusOpen, PoolStatusClosed:
		return true
	}
	return false
}

// Pool is an investment pool configured at the operation level.
type Pool struct {
	ID          int64      `json:"id"`
	OperationID int64      `json:"operation_id"`
	Name        string     `json:"name"`
	Strategy    string     `json:"strategy"`
	Status      PoolStatus `json:"status"`
	TargetCents int64      `json:"target_cents"`
	RaisedCents int64      `json:"raised_cents"`
	Currency    string     `json:"currency"`
	OpensAt     *time.Time `json:"opens_at,omitempty"`
	ClosesAt    *time.Time `json:"closes_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreatePoolRequest is the payload for creating a pool.
type CreatePoolRequest struct {
	Name        string     `json:"name"`
	Strategy    string     `json:"strategy"`
	TargetCents int64      `json:"target_cents"`
	Currency    string     `json:"currency,omitempty"`
	OpensAt     *time.Time `json:"opens_at,omitempty"`
	ClosesAt    *time.Time `json:"closes_at,omitempty"`
}

// UpdatePoolRequest is the payload for updating a pool. Nil fields are
// left unchanged.
type UpdatePoolRequest struct {
	Name        *string     `json:"name,omitempty"`
	Strategy    *string     `json:"strategy,omitempty"`
	Status      *PoolStatus `json:"status,omitempty"`
	TargetCents *int64      `json:"target_cents,omitempty"`
	ClosesAt    *time.Time  `json:"closes_at,omitempty"`
}
