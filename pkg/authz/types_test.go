package authz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionSetAllows(t *testing.T) {
	tests := []struct {
		name   string
		ps     PermissionSet
		module Module
		action Action
		want   bool
	}{
		{
			name:   "explicit allow",
			ps:     PermissionSet{ModuleOrders: {ActionCreate: true}},
			module: ModuleOrders,
			action: ActionCreate,
			want:   true,
		},
		{
			name:   "explicit deny",
			ps:     PermissionSet{ModuleOrders: {ActionCreate: false}},
			module: ModuleOrders,
			action: ActionCreate,
			want:   false,
		},
		{
			name:   "missing action denies",
			ps:     PermissionSet{ModuleOrders: {ActionCreate: true}},
			module: ModuleOrders,
			action: ActionView,
			want:   false,
		},
		{
			name:   "missing module denies",
			ps:     PermissionSet{ModuleOrders: {ActionView: true}},
			module: ModuleProducts,
			action: ActionView,
			want:   false,
		},
		{
			name:   "empty set denies everything",
			ps:     PermissionSet{},
			module: ModuleDashboard,
			action: ActionView,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ps.Allows(tt.module, tt.action))
		})
	}
}

// An empty JSON object and JSON null must stay distinguishable after
// decoding: null keeps role defaults, {} revokes everything.
func TestPermissionSetNullVersusEmpty(t *testing.T) {
	type payload struct {
		Permissions *PermissionSet `json:"permissions"`
	}

	var withNull payload
	require.NoError(t, json.Unmarshal([]byte(`{"permissions": null}`), &withNull))
	assert.Nil(t, withNull.Permissions)

	var withEmpty payload
	require.NoError(t, json.Unmarshal([]byte(`{"permissions": {}}`), &withEmpty))
	require.NotNil(t, withEmpty.Permissions)
	assert.False(t, withEmpty.Permissions.Allows(ModuleDashboard, ActionView))
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleOwner.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleViewer.Valid())
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}

func TestPlatformRoleElevated(t *testing.T) {
	assert.False(t, PlatformRoleNone.Elevated())
	assert.True(t, PlatformRoleAdmin.Elevated())
	assert.True(t, PlatformRoleSuperAdmin.Elevated())
	assert.False(t, PlatformRole("staff").Elevated())
}

func TestModuleCatalogue(t *testing.T) {
	for _, m := range Modules() {
		assert.True(t, KnownModule(m))
		assert.NotEmpty(t, ModuleActions(m))
	}

	assert.False(t, KnownModule(Module("billing")))
	assert.Nil(t, ModuleActions(Module("billing")))

	// Every module is viewable; manage and invite stay team-only
	for _, m := range Modules() {
		actions := ModuleActions(m)
		assert.Contains(t, actions, ActionView)
		if m != ModuleTeam {
			assert.NotContains(t, actions, ActionManage)
			assert.NotContains(t, actions, ActionInvite)
		}
	}
}
