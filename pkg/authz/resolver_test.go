package authz

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/backoffice/pkg/observability"
)

// fakeStore serves grants from memory and records whether it was consulted
type fakeStore struct {
	grants    map[string]*AccessGrant
	err       error
	updateErr error
	calls     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{grants: make(map[string]*AccessGrant)}
}

func (f *fakeStore) key(userID, operationID int64) string {
	return grantKey(userID, operationID)
}

func (f *fakeStore) put(grant *AccessGrant) {
	// Store a copy so later mutations by the caller cannot leak in
	g := *grant
	f.grants[f.key(grant.UserID, grant.OperationID)] = &g
}

func (f *fakeStore) GetGrant(ctx context.Context, userID, operationID int64) (*AccessGrant, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	grant, ok := f.grants[f.key(userID, operationID)]
	if !ok {
		return nil, ErrGrantNotFound
	}
	return grant, nil
}

func (f *fakeStore) CreateGrant(ctx context.Context, grant *AccessGrant) error {
	f.put(grant)
	return nil
}

func (f *fakeStore) UpdateGrant(ctx context.Context, grant *AccessGrant) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.put(grant)
	return nil
}

func (f *fakeStore) DeleteGrant(ctx context.Context, userID, operationID int64) error {
	delete(f.grants, f.key(userID, operationID))
	return nil
}

func (f *fakeStore) ListGrants(ctx context.Context, operationID int64) ([]*AccessGrant, error) {
	var out []*AccessGrant
	for _, g := range f.grants {
		if g.OperationID == operationID {
			out = append(out, g)
		}
	}
	return out, nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestResolveElevatedBypassesStore(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("store must not be consulted")
	resolver := NewResolver(store, testLogger())

	for _, role := range []PlatformRole{PlatformRoleAdmin, PlatformRoleSuperAdmin} {
		allowed, err := resolver.Resolve(context.Background(),
			Identity{UserID: 1, PlatformRole: role}, 10, ModuleSettings, ActionDelete)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	assert.Zero(t, store.calls, "elevated identities must not touch the grant store")
}

func TestResolveNoGrantDenies(t *testing.T) {
	resolver := NewResolver(newFakeStore(), testLogger())

	allowed, err := resolver.Resolve(context.Background(),
		Identity{UserID: 1, PlatformRole: PlatformRoleNone}, 10, ModuleOrders, ActionView)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestResolveRoleDominatesOverride(t *testing.T) {
	// An owner with a fully restrictive override still gets everything
	store := newFakeStore()
	store.put(&AccessGrant{
		UserID:      1,
		OperationID: 10,
		Role:        RoleOwner,
		Permissions: &PermissionSet{},
	})
	resolver := NewResolver(store, testLogger())

	for _, module := range Modules() {
		for _, action := range ModuleActions(module) {
			allowed, err := resolver.Resolve(context.Background(),
				Identity{UserID: 1, PlatformRole: PlatformRoleNone}, 10, module, action)
			require.NoError(t, err)
			assert.True(t, allowed, "owner must be allowed %s.%s despite override", module, action)
		}
	}
}

func TestResolveAdminAllowed(t *testing.T) {
	store := newFakeStore()
	store.put(&AccessGrant{UserID: 1, OperationID: 10, Role: RoleAdmin})
	resolver := NewResolver(store, testLogger())

	allowed, err := resolver.Resolve(context.Background(),
		Identity{UserID: 1, PlatformRole: PlatformRoleNone}, 10, ModuleSettings, ActionEdit)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestResolveViewerBaseline(t *testing.T) {
	// A viewer without overrides may view anything and mutate nothing
	store := newFakeStore()
	store.put(&AccessGrant{UserID: 1, OperationID: 10, Role: RoleViewer})
	resolver := NewResolver(store, testLogger())

	identity := Identity{UserID: 1, PlatformRole: PlatformRoleNone}

	for _, module := range Modules() {
		allowed, err := resolver.Resolve(context.Background(), identity, 10, module, ActionView)
		require.NoError(t, err)
		assert.True(t, allowed, "viewer baseline should allow %s.view", module)
	}

	for _, action := range MutatingActions {
		allowed, err := resolver.Resolve(context.Background(), identity, 10, ModuleOrders, action)
		require.NoError(t, err)
		assert.False(t, allowed, "viewer baseline should deny orders.%s", action)
	}
}

func TestResolveViewerEmptyOverrideDeniesView(t *testing.T) {
	// A non-nil override replaces the baseline entirely: an empty override
	// revokes even view access.
	store := newFakeStore()
	store.put(&AccessGrant{
		UserID:      1,
		OperationID: 10,
		Role:        RoleViewer,
		Permissions: &PermissionSet{},
	})
	resolver := NewResolver(store, testLogger())

	allowed, err := resolver.Resolve(context.Background(),
		Identity{UserID: 1, PlatformRole: PlatformRoleNone}, 10, ModuleDashboard, ActionView)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestResolveViewerPartialOverride(t *testing.T) {
	// Overrides grant exactly what they name; nothing else survives
	store := newFakeStore()
	store.put(&AccessGrant{
		UserID:      1,
		OperationID: 10,
		Role:        RoleViewer,
		Permissions: &PermissionSet{ModuleOrders: {ActionCreate: true}},
	})
	resolver := NewResolver(store, testLogger())

	identity := Identity{UserID: 1, PlatformRole: PlatformRoleNone}

	allowed, err := resolver.Resolve(context.Background(), identity, 10, ModuleOrders, ActionCreate)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = resolver.Resolve(context.Background(), identity, 10, ModuleOrders, ActionView)
	require.NoError(t, err)
	assert.False(t, allowed, "unlisted action must deny even though the baseline allowed it")

	allowed, err = resolver.Resolve(context.Background(), identity, 10, ModuleProducts, ActionView)
	require.NoError(t, err)
	assert.False(t, allowed, "unlisted module must deny")
}

func TestResolveUnknownRoleDenies(t *testing.T) {
	store := newFakeStore()
	store.put(&AccessGrant{UserID: 1, OperationID: 10, Role: Role("superuser")})
	resolver := NewResolver(store, testLogger())

	allowed, err := resolver.Resolve(context.Background(),
		Identity{UserID: 1, PlatformRole: PlatformRoleNone}, 10, ModuleOrders, ActionView)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestResolveStoreFaultDenies(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	resolver := NewResolver(store, testLogger())

	allowed, err := resolver.Resolve(context.Background(),
		Identity{UserID: 1, PlatformRole: PlatformRoleNone}, 10, ModuleOrders, ActionView)
	require.Error(t, err)
	assert.False(t, allowed)
}

func TestResolveScopedToOperation(t *testing.T) {
	// A grant in one operation confers nothing in another
	store := newFakeStore()
	store.put(&AccessGrant{UserID: 1, OperationID: 10, Role: RoleOwner})
	resolver := NewResolver(store, testLogger())

	allowed, err := resolver.Resolve(context.Background(),
		Identity{UserID: 1, PlatformRole: PlatformRoleNone}, 20, ModuleOrders, ActionView)
	require.NoError(t, err)
	assert.False(t, allowed)
}
