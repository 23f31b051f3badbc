package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ledgerline/backoffice/pkg/authz"
	"github.com/ledgerline/backoffice/pkg/httputil"
	"github.com/ledgerline/backoffice/pkg/integrations"
	"github.com/ledgerline/backoffice/pkg/middleware"
)

// IntegrationHandlers serves third-party connection routes.
type IntegrationHandlers struct {
	service *integrations.Service
	guard   *authz.Middleware
}

// NewIntegrationHandlers creates IntegrationHandlers.
func NewIntegrationHandlers(service *integrations.Service, guard *authz.Middleware) *IntegrationHandlers {
	return &IntegrationHandlers{service: service, guard: guard}
}

// RegisterRoutes registers connection routes on an operation-scoped router.
func (h *IntegrationHandlers) RegisterRoutes(router *mux.Router) {
	view := h.guard.RequireAccess(authz.ModuleIntegrations, authz.ActionView)
	create := h.guard.RequireAccess(authz.ModuleIntegrations, authz.ActionCreate)
	edit := h.guard.RequireAccess(authz.ModuleIntegrations, authz.ActionEdit)
	del := h.guard.RequireAccess(authz.ModuleIntegrations, authz.ActionDelete)

	router.Handle("/integrations", view(http.HandlerFunc(h.ListConnections))).Methods("GET")
	router.Handle("/integrations", create(http.HandlerFunc(h.CreateConnection))).Methods("POST")
	router.Handle("/integrations/{connection_id}", view(http.HandlerFunc(h.GetConnection))).Methods("GET")
	router.Handle("/integrations/{connection_id}", edit(http.HandlerFunc(h.UpdateConnection))).Methods("PUT")
	router.Handle("/integrations/{connection_id}", del(http.HandlerFunc(h.DeleteConnection))).Methods("DELETE")
	router.Handle("/integrations/{connection_id}/status", edit(http.HandlerFunc(h.SetStatus))).Methods("POST")
	router.Handle("/integrations/{connection_id}/sync", edit(http.HandlerFunc(h.RecordSync))).Methods("POST")
}

// ListConnections lists the operation's connections.
func (h *IntegrationHandlers) ListConnections(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)

	results, err := h.service.ListConnections(r.Context(), operationID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, results)
}

// CreateConnection configures a new provider connection.
func (h *IntegrationHandlers) CreateConnection(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)

	var req integrations.CreateConnectionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Provider == "" {
		httputil.WriteValidationError(w, "provider is required")
		return
	}
	if req.Name == "" {
		req.Name = req.Provider
	}

	conn := &integrations.Connection{
		OperationID: operationID,
		Provider:    req.Provider,
		Name:        req.Name,
		Status:      integrations.StatusConnected,
		Config:      req.Config,
	}
	if err := h.service.CreateConnection(r.Context(), conn); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, conn)
}

// GetConnection returns a single connection.
func (h *IntegrationHandlers) GetConnection(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	connectionID, ok := httputil.ParsePathInt64OrError(w, r, "connection_id")
	if !ok {
		return
	}

	conn, err := h.service.GetConnection(r.Context(), operationID, connectionID)
	if err != nil {
		if err == integrations.ErrConnectionNotFound {
			httputil.WriteNotFoundError(w, "connection not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, conn)
}

// UpdateConnection applies a partial update to a connection.
func (h *IntegrationHandlers) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	connectionID, ok := httputil.ParsePathInt64OrError(w, r, "connection_id")
	if !ok {
		return
	}

	var req integrations.UpdateConnectionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.service.UpdateConnection(r.Context(), operationID, connectionID, &req); err != nil {
		if err == integrations.ErrConnectionNotFound {
			httputil.WriteNotFoundError(w, "connection not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// SetStatus changes a connection's status, recording a provider error
// message when the status is error.
func (h *IntegrationHandlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	connectionID, ok := httputil.ParsePathInt64OrError(w, r, "connection_id")
	if !ok {
		return
	}

	var req struct {
		Status    integrations.ConnectionStatus `json:"status"`
		LastError string                        `json:"last_error,omitempty"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	switch req.Status {
	case integrations.StatusConnected, integrations.StatusError, integrations.StatusDisabled:
	default:
		httputil.WriteValidationError(w, "invalid status")
		return
	}

	if err := h.service.SetStatus(r.Context(), operationID, connectionID, req.Status, req.LastError); err != nil {
		if err == integrations.ErrConnectionNotFound {
			httputil.WriteNotFoundError(w, "connection not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// RecordSync marks a successful sync with the provider.
func (h *IntegrationHandlers) RecordSync(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	connectionID, ok := httputil.ParsePathInt64OrError(w, r, "connection_id")
	if !ok {
		return
	}

	if err := h.service.RecordSync(r.Context(), operationID, connectionID); err != nil {
		if err == integrations.ErrConnectionNotFound {
			httputil.WriteNotFoundError(w, "connection not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// DeleteConnection removes a connection.
func (h *IntegrationHandlers) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	connectionID, ok := httputil.ParsePathInt64OrError(w, r, "connection_id")
	if !ok {
		return
	}

	if err := h.service.DeleteConnection(r.Context(), operationID, connectionID); err != nil {
		if err == integrations.ErrConnectionNotFound {
			httputil.WriteNotFoundError(w, "connection not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
