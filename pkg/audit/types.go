package audit

import "time"

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin         EventType = "auth.login"
	EventTypeAuthTokenCreate   EventType = "auth.token_create"
	EventTypeAuthTokenRevoke   EventType = "auth.token_revoke"
	EventTypeAuthTokenRejected EventType = "auth.token_rejected"

	// Authorization events
	EventTypeAuthzPermissionCheck EventType = "authz.permission_check"
	EventTypeAuthzAccessDenied    EventType = "authz.access_denied"
	EventTypeAuthzGrantCreate     EventType = "authz.grant_create"
	EventTypeAuthzGrantUpdate    EventType = "authz.grant_update"
	EventTypeAuthzGrantRevoke    EventType = "authz.grant_revoke"
	EventTypeAuthzRoleChange     EventType = "authz.role_change"

	// Team events
	EventTypeTeamMemberAdd    EventType = "team.member_add"
	EventTypeTeamMemberRemove EventType = "team.member_remove"
	EventTypeTeamInviteCreate EventType = "team.invite_create"
	EventTypeTeamInviteAccept EventType = "team.invite_accept"
	EventTypeTeamInviteRevoke EventType = "team.invite_revoke"

	// Admin events
	EventTypeAdminUserCreate      EventType = "admin.user_create"
	EventTypeAdminRoleChange      EventType = "admin.platform_role_change"
	EventTypeAdminOperationCreate EventType = "admin.operation_create"
	EventTypeAdminOperationDelete EventType = "admin.operation_delete"

	// Data export events
	EventTypeDataExport EventType = "data.export"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit log entry. The trail is advisory only: it
// records what the engine decided, it never feeds back into decisions.
type Event struct {
	ID          int64          `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	EventType   EventType      `json:"event_type"`
	Status      EventStatus    `json:"status"`
	UserID      *int64         `json:"user_id,omitempty"`
	OperationID *int64         `json:"operation_id,omitempty"`
	Module      string         `json:"module,omitempty"`
	Action      string         `json:"action,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	Message     string         `json:"message,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// QueryFilter narrows ListEvents results.
type QueryFilter struct {
	EventType   EventType
	UserID      *int64
	OperationID *int64
	Since       *time.Time
	Limit       int
}
