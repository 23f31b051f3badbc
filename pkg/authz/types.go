package authz

import (
	"time"
)

// Module is a functional area within an operation that permissions are scoped to
type Module string

const (
	ModuleDashboard    Module = "dashboard"
	ModuleOrders       Module = "orders"
	ModuleProducts     Module = "products"
	ModuleAds          Module = "ads"
	ModuleIntegrations Module = "integrations"
	ModuleSettings     Module = "settings"
	ModuleTeam         Module = "team"
)

// Action is something a user can do inside a module
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
	ActionInvite Action = "invite"
	ActionManage Action = "manage"
)

// MutatingActions are the actions a role-default viewer never gets
var MutatingActions = []Action{ActionCreate, ActionEdit, ActionDelete, ActionInvite, ActionManage}

// moduleActions is the closed catalogue of which actions are meaningful per
// module. A module/action pair outside this catalogue never grants access.
var moduleActions = map[Module][]Action{
	ModuleDashboard:    {ActionView, ActionExport},
	ModuleOrders:       {ActionView, ActionCreate, ActionEdit, ActionDelete, ActionExport},
	ModuleProducts:     {ActionView, ActionCreate, ActionEdit, ActionDelete},
	ModuleAds:          {ActionView, ActionCreate, ActionEdit, ActionDelete},
	ModuleIntegrations: {ActionView, ActionCreate, ActionEdit, ActionDelete},
	ModuleSettings:     {ActionView, ActionEdit, ActionExport},
	ModuleTeam:         {ActionView, ActionInvite, ActionManage},
}

// Modules returns all known modules
func Modules() []Module {
	return []Module{
		ModuleDashboard,
		ModuleOrders,
		ModuleProducts,
		ModuleAds,
		ModuleIntegrations,
		ModuleSettings,
		ModuleTeam,
	}
}

// ModuleActions returns the actions defined for a module, nil for an unknown module
func ModuleActions(m Module) []Action {
	return moduleActions[m]
}

// KnownModule reports whether m is part of the closed module set
func KnownModule(m Module) bool {
	_, ok := moduleActions[m]
	return ok
}

// ActionSet maps an action to an explicit allow/deny flag.
// An absent action is a denial, never an inherit.
type ActionSet map[Action]bool

// PermissionSet maps modules to their action flags. A nil PermissionSet on a
// grant means "role defaults apply"; a non-nil one fully replaces them, so an
// empty PermissionSet denies everything.
type PermissionSet map[Module]ActionSet

// Allows reports whether the set explicitly grants action a on module m.
// Missing modules and missing actions deny. Unknown keys present in the map
// are never consulted because callers only pass catalogued module/action pairs.
func (ps PermissionSet) Allows(m Module, a Action) bool {
	actions, ok := ps[m]
	if !ok {
		return false
	}
	allowed, ok := actions[a]
	if !ok {
		return false
	}
	return allowed
}

// Clone returns a deep copy of the set.
func (ps PermissionSet) Clone() PermissionSet {
	if ps == nil {
		return nil
	}
	out := make(PermissionSet, len(ps))
	for m, actions := range ps {
		as := make(ActionSet, len(actions))
		for a, allowed := range actions {
			as[a] = allowed
		}
		out[m] = as
	}
	return out
}

// Role is the operation-scoped role on an access grant
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the three enumerated roles
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleViewer:
		return true
	}
	return false
}

// PlatformRole is a cross-tenant role that bypasses operation-scoped checks
type PlatformRole string

const (
	PlatformRoleNone       PlatformRole = "none"
	PlatformRoleAdmin      PlatformRole = "admin"
	PlatformRoleSuperAdmin PlatformRole = "super_admin"
)

// Elevated reports whether the platform role overrides tenant checks
func (p PlatformRole) Elevated() bool {
	return p == PlatformRoleAdmin || p == PlatformRoleSuperAdmin
}

// Identity holds the caller attributes needed for authorization.
// It is immutable for the duration of a request.
type Identity struct {
	UserID       int64        `json:"user_id"`
	PlatformRole PlatformRole `json:"platform_role"`
}

// AccessGrant binds one user to one operation with a role and optional
// permission overrides. At most one grant exists per (user, operation) pair.
type AccessGrant struct {
	ID          int64          `json:"id"`
	UserID      int64          `json:"user_id"`
	OperationID int64          `json:"operation_id"`
	Role        Role           `json:"role"`
	Permissions *PermissionSet `json:"permissions,omitempty"`
	GrantedBy   *int64         `json:"granted_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the grant. Callers may mutate the copy
// without affecting any shared instance, such as a cached one.
func (g *AccessGrant) Clone() *AccessGrant {
	if g == nil {
		return nil
	}
	out := *g
	if g.Permissions != nil {
		ps := g.Permissions.Clone()
		out.Permissions = &ps
	}
	if g.GrantedBy != nil {
		id := *g.GrantedBy
		out.GrantedBy = &id
	}
	return &out
}
