package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ledgerline/backoffice/pkg/authz"
	"github.com/ledgerline/backoffice/pkg/exports"
	"github.com/ledgerline/backoffice/pkg/httputil"
	"github.com/ledgerline/backoffice/pkg/middleware"
	"github.com/ledgerline/backoffice/pkg/pools"
)

// PoolHandlers serves investment pool routes. Pools are operation-level
// configuration, so mutations sit behind the settings edit permission.
type PoolHandlers struct {
	service  *pools.Service
	exporter *exports.Exporter
	guard    *authz.Middleware
}

// NewPoolHandlers creates PoolHandlers.
func NewPoolHandlers(service *pools.Service, exporter *exports.Exporter, guard *authz.Middleware) *PoolHandlers {
	return &PoolHandlers{service: service, exporter: exporter, guard: guard}
}

// RegisterRoutes registers pool routes on an operation-scoped router.
func (h *PoolHandlers) RegisterRoutes(router *mux.Router) {
	view := h.guard.RequireAccess(authz.ModuleSettings, authz.ActionView)
	edit := h.guard.RequireAccess(authz.ModuleSettings, authz.ActionEdit)
	export := h.guard.RequireAccess(authz.ModuleSettings, authz.ActionExport)

	router.Handle("/pools", view(http.HandlerFunc(h.ListPools))).Methods("GET")
	router.Handle("/pools", edit(http.HandlerFunc(h.CreatePool))).Methods("POST")
	router.Handle("/pools/export", export(http.HandlerFunc(h.Export))).Methods("POST")
	router.Handle("/pools/{pool_id}", view(http.HandlerFunc(h.GetPool))).Methods("GET")
	router.Handle("/pools/{pool_id}", edit(http.HandlerFunc(h.UpdatePool))).Methods("PUT")
	router.Handle("/pools/{pool_id}", edit(http.HandlerFunc(h.DeletePool))).Methods("DELETE")
	router.Handle("/pools/{pool_id}/contributions", edit(http.HandlerFunc(h.RecordContribution))).Methods("POST")
}

// ListPools lists the operation's pools.
func (h *PoolHandlers) ListPools(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)

	results, err := h.service.ListPools(r.Context(), operationID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, results)
}

// CreatePool creates a pool in draft state.
func (h *PoolHandlers) CreatePool(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)

	var req pools.CreatePoolRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteValidationError(w, "name is required")
		return
	}
	if req.TargetCents < 0 {
		httputil.WriteValidationError(w, "target_cents must not be negative")
		return
	}

	pool := &pools.Pool{
		OperationID: operationID,
		Name:        req.Name,
		Strategy:    req.Strategy,
		Status:      pools.PoolStatusDraft,
		TargetCents: req.TargetCents,
		Currency:    req.Currency,
		OpensAt:     req.OpensAt,
		ClosesAt:    req.ClosesAt,
	}
	if err := h.service.CreatePool(r.Context(), pool); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, pool)
}

// GetPool returns a single pool.
func (h *PoolHandlers) GetPool(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	poolID, ok := httputil.ParsePathInt64OrError(w, r, "pool_id")
	if !ok {
		return
	}

	pool, err := h.service.GetPool(r.Context(), operationID, poolID)
	if err != nil {
		if err == pools.ErrPoolNotFound {
			httputil.WriteNotFoundError(w, "pool not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, pool)
}

// UpdatePool applies a partial update to a pool.
func (h *PoolHandlers) UpdatePool(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	poolID, ok := httputil.ParsePathInt64OrError(w, r, "pool_id")
	if !ok {
		return
	}

	var req pools.UpdatePoolRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := h.service.UpdatePool(r.Context(), operationID, poolID, &req)
	switch err {
	case nil:
		httputil.WriteNoContent(w)
	case pools.ErrPoolNotFound:
		httputil.WriteNotFoundError(w, "pool not found")
	case pools.ErrInvalidStatus:
		httputil.WriteValidationError(w, "invalid status")
	default:
		httputil.WriteInternalError(w, err)
	}
}

// RecordContribution adds a contribution to an open pool.
func (h *PoolHandlers) RecordContribution(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	poolID, ok := httputil.ParsePathInt64OrError(w, r, "pool_id")
	if !ok {
		return
	}

	var req struct {
		AmountCents int64 `json:"amount_cents"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.AmountCents <= 0 {
		httputil.WriteValidationError(w, "amount_cents must be positive")
		return
	}

	err := h.service.RecordContribution(r.Context(), operationID, poolID, req.AmountCents)
	switch err {
	case nil:
		httputil.WriteNoContent(w)
	case pools.ErrPoolNotFound:
		httputil.WriteNotFoundError(w, "pool not found")
	case pools.ErrPoolClosed:
		httputil.WriteConflict(w, "pool is not open for contributions")
	default:
		httputil.WriteInternalError(w, err)
	}
}

// DeletePool removes a pool.
func (h *PoolHandlers) DeletePool(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	poolID, ok := httputil.ParsePathInt64OrError(w, r, "pool_id")
	if !ok {
		return
	}

	if err := h.service.DeletePool(r.Context(), operationID, poolID); err != nil {
		if err == pools.ErrPoolNotFound {
			httputil.WriteNotFoundError(w, "pool not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// Export writes a CSV snapshot of the operation's pools to object
// storage and returns the object key.
func (h *PoolHandlers) Export(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		httputil.WriteServiceUnavailable(w, "export delivery is not configured")
		return
	}
	operationID, _ := middleware.OperationIDFromRequest(r)

	key, err := h.exporter.ExportPools(r.Context(), operationID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, map[string]interface{}{"key": key})
}
