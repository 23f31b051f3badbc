package audit

import (
	"context"

	"github.com/ledgerline/backoffice/pkg/authz"
	"github.com/ledgerline/backoffice/pkg/contextkeys"
	"github.com/ledgerline/backoffice/pkg/observability"
)

// Recorder turns authorization decisions and team changes into audit
// events. Write failures are logged and swallowed so the trail never
// affects request handling.
type Recorder struct {
	sink   *DBLogger
	logger *observability.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(sink *DBLogger, logger *observability.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger}
}

// RecordDecision writes a permission_check or access_denied event for
// an enforcement decision.
func (r *Recorder) RecordDecision(ctx context.Context, identity authz.Identity, operationID *int64, d authz.Decision) {
	event := &Event{
		Status:      EventStatusSuccess,
		EventType:   EventTypeAuthzPermissionCheck,
		UserID:      &identity.UserID,
		OperationID: operationID,
		Module:      string(d.Module),
		Action:      string(d.Action),
	}
	if !d.Allowed {
		event.EventType = EventTypeAuthzAccessDenied
		event.Status = EventStatusDenied
		event.Message = string(d.Kind)
	}
	event.RequestID = contextkeys.GetRequestID(ctx)

	if err := r.sink.Log(ctx, event); err != nil {
		r.logger.WithError(err).Warn("failed to record authz audit event")
	}
}

// RecordTeamChange writes a team membership event.
func (r *Recorder) RecordTeamChange(ctx context.Context, eventType EventType, actorID, operationID int64, metadata map[string]any) {
	event := &Event{
		EventType:   eventType,
		Status:      EventStatusSuccess,
		UserID:      &actorID,
		OperationID: &operationID,
		Metadata:    metadata,
	}
	event.RequestID = contextkeys.GetRequestID(ctx)

	if err := r.sink.Log(ctx, event); err != nil {
		r.logger.WithError(err).Warn("failed to record team audit event")
	}
}
