package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/backoffice/pkg/audit"
	"github.com/ledgerline/backoffice/pkg/authz"
)

func TestAuditEventsRequirePlatformRole(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.createUser(t, "alice")

	rec := env.do(t, identityFor(alice), "GET", "/api/v1/audit/events", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	operator := authz.Identity{UserID: alice, PlatformRole: authz.PlatformRoleAdmin}
	rec = env.do(t, operator, "GET", "/api/v1/audit/events", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuditEventsListAndFilter(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	opID := env.createOperation(t, "EU Ads", alice)

	// Team mutations leave an audit trail.
	rec := env.do(t, identityFor(alice), "POST", scopedPath(opID, "/team/members"),
		map[string]interface{}{"user_id": bob, "role": "viewer"})
	require.Equal(t, http.StatusCreated, rec.Code)

	operator := authz.Identity{UserID: alice, PlatformRole: authz.PlatformRoleSuperAdmin}

	rec = env.do(t, operator, "GET", "/api/v1/audit/events?event_type=team.member_add", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var events []*audit.Event
	decodeBody(t, rec, &events)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventTypeTeamMemberAdd, events[0].EventType)
	require.NotNil(t, events[0].OperationID)
	assert.Equal(t, opID, *events[0].OperationID)
}

func TestAuditEventsFilterValidation(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.createUser(t, "alice")
	operator := authz.Identity{UserID: alice, PlatformRole: authz.PlatformRoleAdmin}

	rec := env.do(t, operator, "GET", "/api/v1/audit/events?user_id=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, operator, "GET", "/api/v1/audit/events?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
