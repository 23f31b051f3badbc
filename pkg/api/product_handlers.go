package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ledgerline/backoffice/pkg/authz"
	"github.com/ledgerline/backoffice/pkg/httputil"
	"github.com/ledgerline/backoffice/pkg/middleware"
	"github.com/ledgerline/backoffice/pkg/products"
)

// ProductHandlers serves catalog routes.
type ProductHandlers struct {
	service *products.Service
	guard   *authz.Middleware
}

// NewProductHandlers creates ProductHandlers.
func NewProductHandlers(service *products.Service, guard *authz.Middleware) *ProductHandlers {
	return &ProductHandlers{service: service, guard: guard}
}

// RegisterRoutes registers product routes on an operation-scoped router.
func (h *ProductHandlers) RegisterRoutes(router *mux.Router) {
	view := h.guard.RequireAccess(authz.ModuleProducts, authz.ActionView)
	create := h.guard.RequireAccess(authz.ModuleProducts, authz.ActionCreate)
	edit := h.guard.RequireAccess(authz.ModuleProducts, authz.ActionEdit)
	del := h.guard.RequireAccess(authz.ModuleProducts, authz.ActionDelete)

	router.Handle("/products", view(http.HandlerFunc(h.ListProducts))).Methods("GET")
	router.Handle("/products", create(http.HandlerFunc(h.CreateProduct))).Methods("POST")
	router.Handle("/products/{product_id}", view(http.HandlerFunc(h.GetProduct))).Methods("GET")
	router.Handle("/products/{product_id}", edit(http.HandlerFunc(h.UpdateProduct))).Methods("PUT")
	router.Handle("/products/{product_id}", del(http.HandlerFunc(h.DeleteProduct))).Methods("DELETE")
}

// ListProducts lists the operation's products. Pass include_inactive=true
// to include discontinued entries.
func (h *ProductHandlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	results, err := h.service.ListProducts(r.Context(), operationID, includeInactive)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, results)
}

// CreateProduct adds a product to the operation's catalog.
func (h *ProductHandlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)

	var req products.CreateProductRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.SKU == "" {
		httputil.WriteValidationError(w, "sku is required")
		return
	}
	if req.Name == "" {
		httputil.WriteValidationError(w, "name is required")
		return
	}
	if req.PriceCents < 0 {
		httputil.WriteValidationError(w, "price_cents must not be negative")
		return
	}

	product := &products.Product{
		OperationID: operationID,
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		Stock:       req.Stock,
		IsActive:    true,
	}
	if err := h.service.CreateProduct(r.Context(), product); err != nil {
		if err == products.ErrDuplicateSKU {
			httputil.WriteConflict(w, "sku already exists")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, product)
}

// GetProduct returns a single product.
func (h *ProductHandlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	productID, ok := httputil.ParsePathInt64OrError(w, r, "product_id")
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), operationID, productID)
	if err != nil {
		if err == products.ErrProductNotFound {
			httputil.WriteNotFoundError(w, "product not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, product)
}

// UpdateProduct applies a partial update to a product.
func (h *ProductHandlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	productID, ok := httputil.ParsePathInt64OrError(w, r, "product_id")
	if !ok {
		return
	}

	var req products.UpdateProductRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.service.UpdateProduct(r.Context(), operationID, productID, &req); err != nil {
		if err == products.ErrProductNotFound {
			httputil.WriteNotFoundError(w, "product not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// DeleteProduct removes a product from the catalog.
func (h *ProductHandlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	operationID, _ := middleware.OperationIDFromRequest(r)
	productID, ok := httputil.ParsePathInt64OrError(w, r, "product_id")
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), operationID, productID); err != nil {
		if err == products.ErrProductNotFound {
			httputil.WriteNotFoundError(w, "product not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
