package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ledgerline/backoffice/pkg/authz"
	"github.com/ledgerline/backoffice/pkg/dashboard"
	"github.com/ledgerline/backoffice/pkg/exports"
	"github.com/ledgerline/backoffice/pkg/httputil"
	"github.com/ledgerline/backoffice/pkg/middleware"
)

// DashboardHandlers serves the operation dashboard.
type DashboardHandlers struct {
	service  *dashboard.Service
	exporter *exports.Exporter
	guard    *authz.Middleware
}

// NewDashboardHandlers creates DashboardHandlers.
func NewDashboardHandlers(service *dashboard.Service, exporter *exports.Exporter, guard *authz.Middleware) *DashboardHandlers {
	return &DashboardHandlers{service: service, exporter: exporter, guard: guard}
}

// RegisterRoutes registers dashboard routes on an operation-scoped router.
func (h *DashboardHandlers) RegisterRoutes(router *mux.Router) {
	view := h.guard.RequireAccess(authz.ModuleDashboard, authz.ActionView)
	export := h.guard.RequireAccess(authz.ModuleDashboard, authz.ActionExport)

	router.Handle("/dashboard", view(http.HandlerFunc(h.GetSummary))).Methods("GET")
	router.Handle("/dashboard/recent-orders", view(http.HandlerFunc(h.GetRecentOrders))).Methods("GET")
	router.Handle("/dashboard/export", export(http.HandlerFunc(h.Export))).Methods("POST")
}

// GetSummary returns aggregate counts for the operation.
func (h *DashboardHandlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)

	summary, err := h.service.GetSummary(r.Context(), operationID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, summary)
}

// GetRecentOrders returns the most recent orders for the operation.
func (h *DashboardHandlers) GetRecentOrders(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteValidationError(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	recent, err := h.service.RecentOrders(r.Context(), operationID, limit)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, recent)
}

// Export produces an order snapshot in object storage and returns its key.
func (h *DashboardHandlers) Export(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		httputil.WriteServiceUnavailable(w, "export delivery is not configured")
		return
	}
	operationID, _ := middleware.OperationIDFromRequest(r)

	key, err := h.exporter.ExportOrders(r.Context(), operationID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, map[string]interface{}{"key": key})
}
