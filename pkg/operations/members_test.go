package operations

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/backoffice/pkg/authz"
)

func createTestOperation(t *testing.T, svc *Service, db *sql.DB, ownerName string) (*Operation, int64) {
	ownerID := createTestUser(t, db, ownerName)
	op := &Operation{Name: ownerName + " ops", DisplayName: ownerName + " ops", OwnerID: &ownerID}
	require.NoError(t, svc.CreateOperation(context.Background(), op))
	return op, ownerID
}

func TestAddAndGetMember(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	op, ownerID := createTestOperation(t, svc, db, "alice")
	bobID := createTestUser(t, db, "bob")

	require.NoError(t, svc.AddMember(ctx, op.ID, bobID, authz.RoleViewer, &ownerID))

	member, err := svc.GetMember(ctx, op.ID, bobID)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleViewer, member.Role)
	assert.Equal(t, "bob", member.Username)
	assert.Equal(t, "bob@ledgerline.test", member.Email)
	assert.Nil(t, member.Permissions)
	require.NotNil(t, member.GrantedBy)
	assert.Equal(t, ownerID, *member.GrantedBy)

	assert.ErrorIs(t, svc.AddMember(ctx, op.ID, bobID, authz.RoleAdmin, &ownerID), ErrMemberExists)

	_, err = svc.GetMember(ctx, op.ID, 9999)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestListMembers(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	op, ownerID := createTestOperation(t, svc, db, "alice")
	bobID := createTestUser(t, db, "bob")
	carolID := createTestUser(t, db, "carol")

	require.NoError(t, svc.AddMember(ctx, op.ID, bobID, authz.RoleAdmin, &ownerID))
	require.NoError(t, svc.AddMember(ctx, op.ID, carolID, authz.RoleViewer, &ownerID))

	members, err := svc.ListMembers(ctx, op.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)

	byUser := map[string]authz.Role{}
	for _, m := range members {
		byUser[m.Username] = m.Role
	}
	assert.Equal(t, authz.RoleOwner, byUser["alice"])
	assert.Equal(t, authz.RoleAdmin, byUser["bob"])
	assert.Equal(t, authz.RoleViewer, byUser["carol"])
}

func TestGetMemberNormalizesJSONNullPermissions(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	op, ownerID := createTestOperation(t, svc, db, "alice")
	bobID := createTestUser(t, db, "bob")
	require.NoError(t, svc.AddMember(ctx, op.ID, bobID, authz.RoleViewer, &ownerID))

	// An external writer can store the JSON literal null in place of
	// SQL NULL. Both read back as "role defaults", not as an override.
	_, err := db.Exec(`UPDATE access_grants SET permissions = 'null' WHERE user_id = $1 AND operation_id = $2`, bobID, op.ID)
	require.NoError(t, err)

	member, err := svc.GetMember(ctx, op.ID, bobID)
	require.NoError(t, err)
	assert.Nil(t, member.Permissions)
}

func TestUpdateMember(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	op, ownerID := createTestOperation(t, svc, db, "alice")
	bobID := createTestUser(t, db, "bob")
	require.NoError(t, svc.AddMember(ctx, op.ID, bobID, authz.RoleViewer, &ownerID))

	t.Run("role change", func(t *testing.T) {
		admin := authz.RoleAdmin
		require.NoError(t, svc.UpdateMember(ctx, op.ID, bobID, &UpdateMemberRequest{Role: &admin}))

		member, err := svc.GetMember(ctx, op.ID, bobID)
		require.NoError(t, err)
		assert.Equal(t, authz.RoleAdmin, member.Role)
	})

	t.Run("permission override", func(t *testing.T) {
		perms := &authz.PermissionSet{
			authz.ModuleOrders: {authz.ActionView: true, authz.ActionCreate: true},
		}
		require.NoError(t, svc.UpdateMember(ctx, op.ID, bobID, &UpdateMemberRequest{Permissions: perms}))

		member, err := svc.GetMember(ctx, op.ID, bobID)
		require.NoError(t, err)
		require.NotNil(t, member.Permissions)
		assert.True(t, member.Permissions.Allows(authz.ModuleOrders, authz.ActionCreate))
		assert.False(t, member.Permissions.Allows(authz.ModuleProducts, authz.ActionView))
	})

	t.Run("clear override", func(t *testing.T) {
		require.NoError(t, svc.UpdateMember(ctx, op.ID, bobID, &UpdateMemberRequest{ClearPerms: true}))

		member, err := svc.GetMember(ctx, op.ID, bobID)
		require.NoError(t, err)
		assert.Nil(t, member.Permissions)
	})

	t.Run("missing member", func(t *testing.T) {
		viewer := authz.RoleViewer
		err := svc.UpdateMember(ctx, op.ID, 9999, &UpdateMemberRequest{Role: &viewer})
		assert.ErrorIs(t, err, ErrMemberNotFound)
	})
}

func TestRemoveMember(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	op, ownerID := createTestOperation(t, svc, db, "alice")
	bobID := createTestUser(t, db, "bob")
	require.NoError(t, svc.AddMember(ctx, op.ID, bobID, authz.RoleViewer, &ownerID))

	require.NoError(t, svc.RemoveMember(ctx, op.ID, bobID))

	_, err := svc.GetMember(ctx, op.ID, bobID)
	assert.ErrorIs(t, err, ErrMemberNotFound)

	assert.ErrorIs(t, svc.RemoveMember(ctx, op.ID, bobID), ErrMemberNotFound)
}

func TestCreateInvitation(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	op, ownerID := createTestOperation(t, svc, db, "alice")

	invitation := &Invitation{
		OperationID: op.ID,
		Email:       "dave@ledgerline.test",
		Role:        authz.RoleViewer,
		InvitedBy:   ownerID,
	}
	require.NoError(t, svc.CreateInvitation(ctx, invitation))

	assert.NotZero(t, invitation.ID)
	assert.NotEmpty(t, invitation.Token)
	assert.WithinDuration(t, time.Now().UTC().Add(invitationTTL), invitation.ExpiresAt, time.Minute)

	got, err := svc.GetInvitation(ctx, invitation.Token)
	require.NoError(t, err)
	assert.Equal(t, "dave@ledgerline.test", got.Email)
	assert.Equal(t, authz.RoleViewer, got.Role)
	assert.Nil(t, got.AcceptedAt)
}

func TestReinviteReplacesPending(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	op, ownerID := createTestOperation(t, svc, db, "alice")

	first := &Invitation{OperationID: op.ID, Email: "dave@ledgerline.test", Role: authz.RoleViewer, InvitedBy: ownerID}
	require.NoError(t, svc.CreateInvitation(ctx, first))

	second := &Invitation{OperationID: op.ID, Email: "dave@ledgerline.test", Role: authz.RoleAdmin, InvitedBy: ownerID}
	require.NoError(t, svc.CreateInvitation(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.Token, second.Token)

	_, err := svc.GetInvitation(ctx, first.Token)
	assert.ErrorIs(t, err, ErrInvitationNotFound)

	got, err := svc.GetInvitation(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, got.Role)
}

func TestAcceptInvitationSeedsDefaults(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	op, ownerID := createTestOperation(t, svc, db, "alice")
	daveID := createTestUser(t, db, "dave")

	invitation := &Invitation{OperationID: op.ID, Email: "dave@ledgerline.test", Role: authz.RoleViewer, InvitedBy: ownerID}
	require.NoError(t, svc.CreateInvitation(ctx, invitation))

	require.NoError(t, svc.AcceptInvitation(ctx, invitation.Token, daveID))

	member, err := svc.GetMember(ctx, op.ID, daveID)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleViewer, member.Role)
	require.NotNil(t, member.Permissions)
	assert.True(t, member.Permissions.Allows(authz.ModuleOrders, authz.ActionView))
	assert.True(t, member.Permissions.Allows(authz.ModuleOrders, authz.ActionExport))
	assert.False(t, member.Permissions.Allows(authz.ModuleOrders, authz.ActionCreate))
	require.NotNil(t, member.GrantedBy)
	assert.Equal(t, ownerID, *member.GrantedBy)

	assert.ErrorIs(t, svc.AcceptInvitation(ctx, invitation.Token, daveID), ErrInvitationAccepted)

	pending, err := svc.ListInvitations(ctx, op.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAcceptExpiredInvitation(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	op, ownerID := createTestOperation(t, svc, db, "alice")
	daveID := createTestUser(t, db, "dave")

	invitation := &Invitation{
		OperationID: op.ID,
		Email:       "dave@ledgerline.test",
		Role:        authz.RoleViewer,
		InvitedBy:   ownerID,
		ExpiresAt:   time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, svc.CreateInvitation(ctx, invitation))

	assert.ErrorIs(t, svc.AcceptInvitation(ctx, invitation.Token, daveID), ErrInvitationExpired)

	_, err := svc.GetMember(ctx, op.ID, daveID)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestRevokeInvitation(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	op, ownerID := createTestOperation(t, svc, db, "alice")

	invitation := &Invitation{OperationID: op.ID, Email: "dave@ledgerline.test", Role: authz.RoleViewer, InvitedBy: ownerID}
	require.NoError(t, svc.CreateInvitation(ctx, invitation))

	require.NoError(t, svc.RevokeInvitation(ctx, invitation.ID))

	_, err := svc.GetInvitation(ctx, invitation.Token)
	assert.ErrorIs(t, err, ErrInvitationNotFound)

	assert.ErrorIs(t, svc.RevokeInvitation(ctx, invitation.ID), ErrInvitationNotFound)
}

func TestCleanupExpiredInvitations(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	op, ownerID := createTestOperation(t, svc, db, "alice")

	expired := &Invitation{
		OperationID: op.ID,
		Email:       "old@ledgerline.test",
		Role:        authz.RoleViewer,
		InvitedBy:   ownerID,
		ExpiresAt:   time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, svc.CreateInvitation(ctx, expired))

	fresh := &Invitation{OperationID: op.ID, Email: "new@ledgerline.test", Role: authz.RoleViewer, InvitedBy: ownerID}
	require.NoError(t, svc.CreateInvitation(ctx, fresh))

	swept, err := svc.CleanupExpiredInvitations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	_, err = svc.GetInvitation(ctx, expired.Token)
	assert.ErrorIs(t, err, ErrInvitationNotFound)

	_, err = svc.GetInvitation(ctx, fresh.Token)
	require.NoError(t, err)
}
