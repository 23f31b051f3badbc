package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ledgerline/backoffice/pkg/audit"
	"github.com/ledgerline/backoffice/pkg/httputil"
	"github.com/ledgerline/backoffice/pkg/middleware"
)

// AuditHandlers exposes the audit trail to platform operators.
type AuditHandlers struct {
	store *audit.DBLogger
}

// NewAuditHandlers creates AuditHandlers.
func NewAuditHandlers(store *audit.DBLogger) *AuditHandlers {
	return &AuditHandlers{store: store}
}

// RegisterRoutes registers audit routes.
func (h *AuditHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit/events", h.ListEvents).Methods("GET")
}

// ListEvents returns audit events, newest first. Restricted to callers
// with an elevated platform role.
func (h *AuditHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if !identity.PlatformRole.Elevated() {
		httputil.WriteForbidden(w, "platform operator access required")
		return
	}

	var filter audit.QueryFilter
	query := r.URL.Query()
	if raw := query.Get("event_type"); raw != "" {
		filter.EventType = audit.EventType(raw)
	}
	if raw := query.Get("user_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.WriteValidationError(w, "user_id must be an integer")
			return
		}
		filter.UserID = &parsed
	}
	if raw := query.Get("operation_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.WriteValidationError(w, "operation_id must be an integer")
			return
		}
		filter.OperationID = &parsed
	}
	if raw := query.Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteValidationError(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = &parsed
	}
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteValidationError(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = parsed
	}

	events, err := h.store.ListEvents(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, events)
}
