package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ledgerline/backoffice/pkg/ads"
	"github.com/ledgerline/backoffice/pkg/audit"
	"github.com/ledgerline/backoffice/pkg/auth"
	"github.com/ledgerline/backoffice/pkg/authz"
	"github.com/ledgerline/backoffice/pkg/dashboard"
	"github.com/ledgerline/backoffice/pkg/exports"
	"github.com/ledgerline/backoffice/pkg/httputil"
	"github.com/ledgerline/backoffice/pkg/integrations"
	"github.com/ledgerline/backoffice/pkg/middleware"
	"github.com/ledgerline/backoffice/pkg/observability"
	"github.com/ledgerline/backoffice/pkg/operations"
	"github.com/ledgerline/backoffice/pkg/orders"
	"github.com/ledgerline/backoffice/pkg/pools"
	"github.com/ledgerline/backoffice/pkg/products"
)

// Services bundles the domain services the server routes to.
type Services struct {
	Tokens       *auth.TokenManager
	Operations   *operations.Service
	Orders       *orders.Service
	Products     *products.Service
	Ads          *ads.Service
	Integrations *integrations.Service
	Pools        *pools.Service
	Dashboard    *dashboard.Service
	Exporter     *exports.Exporter
	Audit        *audit.DBLogger
	Recorder     *audit.Recorder
}

// Server is the back-office HTTP API. Every route under an operation
// scope passes through authentication, operation validation and the
// access guard before reaching a handler.
type Server struct {
	router    *mux.Router
	guard     *authz.Middleware
	auth      *middleware.AuthMiddleware
	rateLimit *middleware.RateLimitMiddleware
	services  Services
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewServer wires the router. rateLimit may be nil when Redis-backed
// limiting is disabled.
func NewServer(
	guard *authz.Middleware,
	auth *middleware.AuthMiddleware,
	rateLimit *middleware.RateLimitMiddleware,
	services Services,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		guard:     guard,
		auth:      auth,
		rateLimit: rateLimit,
		services:  services,
		logger:    logger,
		metrics:   metrics,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(httputil.RecoveryMiddleware)
	s.router.Use(httputil.RequestIDMiddleware)
	if s.metrics != nil {
		s.router.Use(s.metrics.HTTPMiddleware)
	}
	s.router.Use(s.auth.Handler)
	if s.rateLimit != nil {
		s.router.Use(s.rateLimit.Handler)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Authenticated user surface, no operation scope.
	authHandlers := NewAuthHandlers(s.services.Operations)
	if s.services.Tokens != nil {
		authHandlers.WithTokenManager(s.services.Tokens)
	}
	authHandlers.RegisterRoutes(api)

	// Operation CRUD and invitation acceptance live outside the
	// operation-scoped subrouter.
	opHandlers := NewOperationHandlers(s.services.Operations, s.guard, s.services.Recorder)
	opHandlers.RegisterRoutes(api)

	// Everything below here is scoped to /operations/{operation_id}.
	// The guard validates the ID against the operations table after
	// the access decision.
	scoped := api.PathPrefix("/operations/{operation_id}").Subrouter()
	scoped.Use(middleware.OperationContextMiddleware())

	opHandlers.RegisterScopedRoutes(scoped)
	NewDashboardHandlers(s.services.Dashboard, s.services.Exporter, s.guard).RegisterRoutes(scoped)
	NewOrderHandlers(s.services.Orders, s.services.Exporter, s.guard).RegisterRoutes(scoped)
	NewProductHandlers(s.services.Products, s.guard).RegisterRoutes(scoped)
	NewAdsHandlers(s.services.Ads, s.guard).RegisterRoutes(scoped)
	NewIntegrationHandlers(s.services.Integrations, s.guard).RegisterRoutes(scoped)
	NewPoolHandlers(s.services.Pools, s.services.Exporter, s.guard).RegisterRoutes(scoped)

	// Audit trail is platform-admin only.
	NewAuditHandlers(s.services.Audit).RegisterRoutes(api)
}

// Router exposes the configured router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
