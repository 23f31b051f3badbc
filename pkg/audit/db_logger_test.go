package audit

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/backoffice/pkg/authz"
	"github.com/ledgerline/backoffice/pkg/observability"
)

func setupDBLogger(t *testing.T) *DBLogger {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	// ensureTable uses BIGSERIAL, so build the sqlite equivalent here.
	_, err = db.Exec(`
		CREATE TABLE audit_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TIMESTAMP NOT NULL,
			event_type TEXT NOT NULL,
			status TEXT NOT NULL,
			user_id INTEGER,
			operation_id INTEGER,
			module TEXT,
			action TEXT,
			request_id TEXT,
			message TEXT,
			metadata TEXT
		);
	`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return &DBLogger{db: db}
}

func TestLogAndListEvents(t *testing.T) {
	logger := setupDBLogger(t)
	ctx := context.Background()

	userID := int64(7)
	operationID := int64(42)
	event := &Event{
		EventType:   EventTypeAuthzAccessDenied,
		Status:      EventStatusDenied,
		UserID:      &userID,
		OperationID: &operationID,
		Module:      "orders",
		Action:      "delete",
		RequestID:   "req-123",
		Message:     "access_denied",
		Metadata:    map[string]any{"role": "viewer"},
	}
	require.NoError(t, logger.Log(ctx, event))
	assert.NotZero(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())

	events, err := logger.ListEvents(ctx, QueryFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	got := events[0]
	assert.Equal(t, EventTypeAuthzAccessDenied, got.EventType)
	assert.Equal(t, "orders", got.Module)
	assert.Equal(t, "req-123", got.RequestID)
	assert.Equal(t, "viewer", got.Metadata["role"])
	require.NotNil(t, got.OperationID)
	assert.Equal(t, int64(42), *got.OperationID)
}

func TestListEventsFilters(t *testing.T) {
	logger := setupDBLogger(t)
	ctx := context.Background()

	alice := int64(1)
	bob := int64(2)
	opA := int64(10)
	opB := int64(20)

	for _, e := range []*Event{
		{EventType: EventTypeAuthzPermissionCheck, Status: EventStatusSuccess, UserID: &alice, OperationID: &opA},
		{EventType: EventTypeAuthzAccessDenied, Status: EventStatusDenied, UserID: &alice, OperationID: &opB},
		{EventType: EventTypeAuthzAccessDenied, Status: EventStatusDenied, UserID: &bob, OperationID: &opA},
	} {
		require.NoError(t, logger.Log(ctx, e))
	}

	denied, err := logger.ListEvents(ctx, QueryFilter{EventType: EventTypeAuthzAccessDenied})
	require.NoError(t, err)
	assert.Len(t, denied, 2)

	aliceEvents, err := logger.ListEvents(ctx, QueryFilter{UserID: &alice})
	require.NoError(t, err)
	assert.Len(t, aliceEvents, 2)

	opAEvents, err := logger.ListEvents(ctx, QueryFilter{OperationID: &opA})
	require.NoError(t, err)
	assert.Len(t, opAEvents, 2)

	limited, err := logger.ListEvents(ctx, QueryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPurgeBefore(t *testing.T) {
	logger := setupDBLogger(t)
	ctx := context.Background()

	old := &Event{EventType: EventTypeAuthLogin, Status: EventStatusSuccess,
		Timestamp: time.Now().UTC().Add(-48 * time.Hour)}
	recent := &Event{EventType: EventTypeAuthLogin, Status: EventStatusSuccess}
	require.NoError(t, logger.Log(ctx, old))
	require.NoError(t, logger.Log(ctx, recent))

	purged, err := logger.PurgeBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	events, err := logger.ListEvents(ctx, QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRecorderRecordDecision(t *testing.T) {
	sink := setupDBLogger(t)
	recorder := NewRecorder(sink, observability.NewLogger(observability.ErrorLevel, io.Discard))
	ctx := context.Background()

	identity := authz.Identity{UserID: 7}
	operationID := int64(42)

	recorder.RecordDecision(ctx, identity, &operationID, authz.Decision{Allowed: true,
		Module: authz.ModuleOrders, Action: authz.ActionView})
	recorder.RecordDecision(ctx, identity, &operationID, authz.Decision{Allowed: false,
		Kind: authz.RejectAccessDenied, Module: authz.ModuleOrders, Action: authz.ActionDelete})

	checks, err := sink.ListEvents(ctx, QueryFilter{EventType: EventTypeAuthzPermissionCheck})
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, "view", checks[0].Action)

	denials, err := sink.ListEvents(ctx, QueryFilter{EventType: EventTypeAuthzAccessDenied})
	require.NoError(t, err)
	require.Len(t, denials, 1)
	assert.Equal(t, EventStatusDenied, denials[0].Status)
	assert.Equal(t, "access_denied", denials[0].Message)
}

func TestRecorderRecordTeamChange(t *testing.T) {
	sink := setupDBLogger(t)
	recorder := NewRecorder(sink, observability.NewLogger(observability.ErrorLevel, io.Discard))
	ctx := context.Background()

	recorder.RecordTeamChange(ctx, EventTypeTeamMemberAdd, 1, 42, map[string]any{"member": float64(9)})

	events, err := sink.ListEvents(ctx, QueryFilter{EventType: EventTypeTeamMemberAdd})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, float64(9), events[0].Metadata["member"])
}
