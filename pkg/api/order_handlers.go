package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ledgerline/backoffice/pkg/authz"
	"github.com/ledgerline/backoffice/pkg/exports"
	"github.com/ledgerline/backoffice/pkg/httputil"
	"github.com/ledgerline/backoffice/pkg/middleware"
	"github.com/ledgerline/backoffice/pkg/orders"
)

// OrderHandlers serves order and support ticket routes.
type OrderHandlers struct {
	service  *orders.Service
	exporter *exports.Exporter
	guard    *authz.Middleware
}

// NewOrderHandlers creates OrderHandlers.
func NewOrderHandlers(service *orders.Service, exporter *exports.Exporter, guard *authz.Middleware) *OrderHandlers {
	return &OrderHandlers{service: service, exporter: exporter, guard: guard}
}

// RegisterRoutes registers order routes on an operation-scoped router.
func (h *OrderHandlers) RegisterRoutes(router *mux.Router) {
	view := h.guard.RequireAccess(authz.ModuleOrders, authz.ActionView)
	create := h.guard.RequireAccess(authz.ModuleOrders, authz.ActionCreate)
	edit := h.guard.RequireAccess(authz.ModuleOrders, authz.ActionEdit)
	del := h.guard.RequireAccess(authz.ModuleOrders, authz.ActionDelete)
	export := h.guard.RequireAccess(authz.ModuleOrders, authz.ActionExport)

	router.Handle("/orders", view(http.HandlerFunc(h.ListOrders))).Methods("GET")
	router.Handle("/orders", create(http.HandlerFunc(h.CreateOrder))).Methods("POST")
	router.Handle("/orders/export", export(http.HandlerFunc(h.Export))).Methods("POST")
	router.Handle("/orders/{order_id}", view(http.HandlerFunc(h.GetOrder))).Methods("GET")
	router.Handle("/orders/{order_id}", edit(http.HandlerFunc(h.UpdateOrder))).Methods("PUT")
	router.Handle("/orders/{order_id}", del(http.HandlerFunc(h.DeleteOrder))).Methods("DELETE")

	router.Handle("/orders/{order_id}/tickets", view(http.HandlerFunc(h.ListTickets))).Methods("GET")
	router.Handle("/orders/{order_id}/tickets", create(http.HandlerFunc(h.CreateTicket))).Methods("POST")
	router.Handle("/orders/{order_id}/tickets/{ticket_id}/close", edit(http.HandlerFunc(h.CloseTicket))).Methods("POST")
}

// ListOrders lists orders for the operation, with optional status,
// limit, and offset query parameters.
func (h *OrderHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)

	var filter orders.ListOrdersFilter
	query := r.URL.Query()
	if raw := query.Get("status"); raw != "" {
		status := orders.OrderStatus(raw)
		if !status.Valid() {
			httputil.WriteValidationError(w, "invalid status filter")
			return
		}
		filter.Status = status
	}
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteValidationError(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = parsed
	}
	if raw := query.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteValidationError(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = parsed
	}

	results, err := h.service.ListOrders(r.Context(), operationID, filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, results)
}

// CreateOrder records a new order for the operation.
func (h *OrderHandlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	identity, _ := middleware.GetIdentity(r)

	var req orders.CreateOrderRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Reference == "" {
		httputil.WriteValidationError(w, "reference is required")
		return
	}
	if req.TotalCents < 0 {
		httputil.WriteValidationError(w, "total_cents must not be negative")
		return
	}

	order := &orders.Order{
		OperationID:   operationID,
		Reference:     req.Reference,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Status:        orders.OrderStatusPending,
		TotalCents:    req.TotalCents,
		Currency:      req.Currency,
		Notes:         req.Notes,
		CreatedBy:     &identity.UserID,
	}
	if err := h.service.CreateOrder(r.Context(), order); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, order)
}

// GetOrder returns a single order.
func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	orderID, ok := httputil.ParsePathInt64OrError(w, r, "order_id")
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), operationID, orderID)
	if err != nil {
		if err == orders.ErrOrderNotFound {
			httputil.WriteNotFoundError(w, "order not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, order)
}

// UpdateOrder applies a partial update to an order.
func (h *OrderHandlers) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	orderID, ok := httputil.ParsePathInt64OrError(w, r, "order_id")
	if !ok {
		return
	}

	var req orders.UpdateOrderRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := h.service.UpdateOrder(r.Context(), operationID, orderID, &req)
	switch err {
	case nil:
		httputil.WriteNoContent(w)
	case orders.ErrOrderNotFound:
		httputil.WriteNotFoundError(w, "order not found")
	case orders.ErrInvalidStatus:
		httputil.WriteValidationError(w, "invalid status")
	default:
		httputil.WriteInternalError(w, err)
	}
}

// DeleteOrder removes an order and its tickets.
func (h *OrderHandlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	orderID, ok := httputil.ParsePathInt64OrError(w, r, "order_id")
	if !ok {
		return
	}

	if err := h.service.DeleteOrder(r.Context(), operationID, orderID); err != nil {
		if err == orders.ErrOrderNotFound {
			httputil.WriteNotFoundError(w, "order not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListTickets lists tickets attached to an order.
func (h *OrderHandlers) ListTickets(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	orderID, ok := httputil.ParsePathInt64OrError(w, r, "order_id")
	if !ok {
		return
	}

	tickets, err := h.service.ListTickets(r.Context(), operationID, orderID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, tickets)
}

// CreateTicket opens a support ticket against an order.
func (h *OrderHandlers) CreateTicket(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	identity, _ := middleware.GetIdentity(r)
	orderID, ok := httputil.ParsePathInt64OrError(w, r, "order_id")
	if !ok {
		return
	}

	var req orders.CreateTicketRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Subject == "" {
		httputil.WriteValidationError(w, "subject is required")
		return
	}

	ticket := &orders.Ticket{
		OrderID:     orderID,
		OperationID: operationID,
		Subject:     req.Subject,
		Body:        req.Body,
		Status:      orders.TicketStatusOpen,
		CreatedBy:   &identity.UserID,
	}
	if err := h.service.CreateTicket(r.Context(), ticket); err != nil {
		if err == orders.ErrOrderNotFound {
			httputil.WriteNotFoundError(w, "order not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, ticket)
}

// CloseTicket marks a ticket closed.
func (h *OrderHandlers) CloseTicket(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	ticketID, ok := httputil.ParsePathInt64OrError(w, r, "ticket_id")
	if !ok {
		return
	}

	if err := h.service.CloseTicket(r.Context(), operationID, ticketID); err != nil {
		if err == orders.ErrTicketNotFound {
			httputil.WriteNotFoundError(w, "ticket not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// Export writes a CSV snapshot of the operation's orders to object
// storage and returns the object key.
func (h *OrderHandlers) Export(w http.ResponseWriter, r *http.Request) {
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
