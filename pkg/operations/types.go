package operations

import (
	"time"

	"github.com/ledgerline/backoffice/pkg/authz"
)

// OperationStatus represents the lifecycle state of an operation.
type OperationStatus string

const (
	StatusActive    OperationStatus = "active"
	StatusSuspended OperationStatus = "suspended"
	StatusDeleted   OperationStatus = "deleted"
)

// Operation is a tenant workspace. Every grant, order, product and
// export in the system is scoped to exactly one operation.
type Operation struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	DisplayName string          `json:"display_name"`
	Description string          `json:"description,omitempty"`
	OwnerID     *int64          `json:"owner_id,omitempty"`
	Status      OperationStatus `json:"status"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Member is a user's membership in an operation, joined with the user
// record for display. The underlying row is the user's access grant.
type Member struct {
	GrantID     int64                `json:"grant_id"`
	OperationID int64                `json:"operation_id"`
	UserID      int64                `json:"user_id"`
	Role        authz.Role           `json:"role"`
	Permissions *authz.PermissionSet `json:"permissions,omitempty"`
	GrantedBy   *int64               `json:"granted_by,omitempty"`
	JoinedAt    time.Time            `json:"joined_at"`
	Username    string               `json:"username"`
	Email       string               `json:"email,omitempty"`
	FullName    string               `json:"full_name,omitempty"`
}

// Invitation is a pending invite to join an operation with a given role.
type Invitation struct {
	ID          int64      `json:"id"`
	OperationID int64      `json:"operation_id"`
	Email       string     `json:"email"`
	Role        authz.Role `json:"role"`
	Token       string     `json:"token,omitempty"`
	InvitedBy   int64      `json:"invited_by"`
	InvitedAt   time.Time  `json:"invited_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy  *int64     `json:"accepted_by,omitempty"`
}

// Expired reports whether the invitation has passed its expiry.
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// CreateOperationRequest is the payload for creating an operation.
type CreateOperationRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
}

// UpdateOperationRequest is the payload for updating an operation.
// Nil fields are left unchanged.
type UpdateOperationRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// AddMemberRequest is the payload for adding a member directly.
type AddMemberRequest struct {
	UserID int64      `json:"user_id"`
	Role   authz.Role `json:"role"`
}

// UpdateMemberRequest is the payload for changing a member's role or
// permission override. Permissions uses three states: absent leaves the
// override unchanged, JSON null clears it, an object replaces it.
type UpdateMemberRequest struct {
	Role        *authz.Role          `json:"role,omitempty"`
	Permissions *authz.PermissionSet `json:"permissions,omitempty"`
	ClearPerms  bool                 `json:"clear_permissions,omitempty"`
}

// InviteMemberRequest is the payload for inviting a member by email.
type InviteMemberRequest struct {
	Email string     `json:"email"`
	Role  authz.Role `json:"role"`
}
