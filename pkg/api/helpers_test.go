package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/backoffice/pkg/ads"
	"github.com/ledgerline/backoffice/pkg/audit"
	"github.com/ledgerline/backoffice/pkg/authz"
	"github.com/ledgerline/backoffice/pkg/contextkeys"
	"github.com/ledgerline/backoffice/pkg/dashboard"
	"github.com/ledgerline/backoffice/pkg/exports"
	"github.com/ledgerline/backoffice/pkg/integrations"
	"github.com/ledgerline/backoffice/pkg/middleware"
	"github.com/ledgerline/backoffice/pkg/observability"
	"github.com/ledgerline/backoffice/pkg/operations"
	"github.com/ledgerline/backoffice/pkg/orders"
	"github.com/ledgerline/backoffice/pkg/pools"
	"github.com/ledgerline/backoffice/pkg/products"
)

const testSchema = `
	CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT,
		full_name TEXT
	);

	CREATE TABLE operations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		description TEXT,
		owner_id INTEGER,
		status TEXT NOT NULL DEFAULT 'active',
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE access_grants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		operation_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		permissions TEXT,
		granted_by INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(user_id, operation_id)
	);

	CREATE TABLE operation_invitations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation_id INTEGER NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		invited_by INTEGER NOT NULL,
		invited_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		accepted_at TIMESTAMP,
		accepted_by INTEGER,
		UNIQUE(operation_id, email)
	);

	CREATE TABLE orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation_id INTEGER NOT NULL,
		reference TEXT NOT NULL,
		customer_name TEXT NOT NULL,
		customer_email TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		total_cents INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'USD',
		notes TEXT,
		created_by INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(operation_id, reference)
	);

	CREATE TABLE order_tickets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL,
		operation_id INTEGER NOT NULL,
		subject TEXT NOT NULL,
		body TEXT,
		status TEXT NOT NULL DEFAULT 'open',
		created_by INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation_id INTEGER NOT NULL,
		sku TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		price_cents INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'USD',
		stock INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(operation_id, sku)
	);

	CREATE TABLE ad_campaigns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		channel TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		budget_cents INTEGER NOT NULL DEFAULT 0,
		spent_cents INTEGER NOT NULL DEFAULT 0,
		starts_at TIMESTAMP,
		ends_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE integration_connections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation_id INTEGER NOT NULL,
		provider TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'connected',
		config TEXT NOT NULL DEFAULT '{}',
		last_error TEXT,
		last_sync_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE investment_pools (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		strategy TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		target_cents INTEGER NOT NULL DEFAULT 0,
		raised_cents INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'USD',
		opens_at TIMESTAMP,
		closes_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

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
`

// fakeObjectStore captures exported objects in memory.
type fakeObjectStore struct {
	keys []string
}

func (f *fakeObjectStore) PutObject(_ context.Context, key string, content io.Reader, _ string) error {
	if _, err := io.ReadAll(content); err != nil {
		return err
	}
	f.keys = append(f.keys, key)
	return nil
}

type testEnv struct {
	db         *sql.DB
	router     *mux.Router
	operations *operations.Service
	orders     *orders.Service
	audit      *audit.DBLogger
	objects    *fakeObjectStore
}

// setupTestEnv builds the full routing surface against an in-memory
// database, with authorization enforced by the real guard. Requests
// carry an identity injected directly into the context, standing in for
// the token middleware.
func setupTestEnv(t *testing.T) *testEnv {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	grantStore := authz.NewPostgresStore(db)
	resolver := authz.NewResolver(grantStore, logger)
	guard := authz.NewGuard(resolver, grantStore, logger, nil)

	opsSvc := operations.NewService(db, grantStore)
	guardMW := authz.NewMiddleware(guard, opsSvc)
	orderSvc := orders.NewService(db)
	productSvc := products.NewService(db)
	adsSvc := ads.NewService(db)
	integrationSvc := integrations.NewService(db)
	poolSvc := pools.NewService(db)
	dashboardSvc := dashboard.NewService(db)

	objects := &fakeObjectStore{}
	exporter := exports.NewExporter(objects, orderSvc, poolSvc, logger)

	auditLog, err := audit.NewDBLogger(db)
	require.NoError(t, err)
	recorder := audit.NewRecorder(auditLog, logger)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()

	NewAuthHandlers(opsSvc).RegisterRoutes(api)
	NewAuditHandlers(auditLog).RegisterRoutes(api)

	opHandlers := NewOperationHandlers(opsSvc, guardMW, recorder)
	opHandlers.RegisterRoutes(api)

	scoped := api.PathPrefix("/operations/{operation_id}").Subrouter()
	scoped.Use(middleware.OperationContextMiddleware())
	opHandlers.RegisterScopedRoutes(scoped)
	NewDashboardHandlers(dashboardSvc, exporter, guardMW).RegisterRoutes(scoped)
	NewOrderHandlers(orderSvc, exporter, guardMW).RegisterRoutes(scoped)
	NewProductHandlers(productSvc, guardMW).RegisterRoutes(scoped)
	NewAdsHandlers(adsSvc, guardMW).RegisterRoutes(scoped)
	NewIntegrationHandlers(integrationSvc, guardMW).RegisterRoutes(scoped)
	NewPoolHandlers(poolSvc, exporter, guardMW).RegisterRoutes(scoped)

	return &testEnv{
		db:         db,
		router:     router,
		operations: opsSvc,
		orders:     orderSvc,
		audit:      auditLog,
		objects:    objects,
	}
}

func (e *testEnv) createUser(t *testing.T, username string) int64 {
	res, err := e.db.Exec(`INSERT INTO users (username, email, full_name) VALUES ($1, $2, $3)`,
		username, username+"@ledgerline.test", "Test "+username)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// createOperation creates an operation owned by ownerID, granting the
// owner role through the service path.
func (e *testEnv) createOperation(t *testing.T, name string, ownerID int64) int64 {
	op := &operations.Operation{Name: name, DisplayName: name, OwnerID: &ownerID}
	require.NoError(t, e.operations.CreateOperation(context.Background(), op))
	return op.ID
}

func (e *testEnv) addMember(t *testing.T, operationID, userID int64, role authz.Role) {
	require.NoError(t, e.operations.AddMember(context.Background(), operationID, userID, role, nil))
}

// do issues a request through the router with the given identity on the
// context.
func (e *testEnv) do(t *testing.T, identity authz.Identity, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(contextkeys.WithIdentity(req.Context(), identity))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// doAnonymous issues a request with no identity on the context.
func (e *testEnv) doAnonymous(t *testing.T, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dest))
}

func scopedPath(operationID int64, suffix string) string {
	return fmt.Sprintf("/api/v1/operations/%d%s", operationID, suffix)
}

func identityFor(userID int64) authz.Identity {
	return authz.Identity{UserID: userID, PlatformRole: authz.PlatformRoleNone}
}

func intToStr(v int64) string {
	return strconv.FormatInt(v, 10)
}
