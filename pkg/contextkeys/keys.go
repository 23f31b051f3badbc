// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains authz.Identity
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: All protected API endpoints, authz middleware
	IdentityKey Key = "identity"

	// OperationKey contains *operations.Operation
	// Set by: middleware.OperationContextMiddleware (pkg/middleware/operation.go)
	// Required by: Operation-scoped endpoints, authz middleware
	OperationKey Key = "operation"

	// OperationIDKey contains the resolved operation ID (int64)
	// Set by: middleware.OperationContextMiddleware (pkg/middleware/operation.go)
	// Required by: authz enforcement middleware
	OperationIDKey Key = "operation_id"

	// RequestIDKey contains request ID string (UUID)
	// Set by: HTTP middleware, observability layer
	// Used by: Logger, audit trail
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID string
	// Set by: Auth middleware after token validation
	// Used by: Logger, audit trail, user-scoped operations
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: Observability middleware
	// Used by: Handlers that need structured logging with request context
	LoggerKey Key = "logger"

	// AuditLoggerKey contains audit.Logger interface
	// Set by: Audit middleware (pkg/audit/middleware.go)
	// Used by: Handlers that record audit events
	AuditLoggerKey Key = "audit_logger"
)

// WithIdentity adds the authenticated identity to the context
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// WithOperation adds the resolved operation to the context
func WithOperation(ctx context.Context, op interface{}) context.Context {
	return context.WithValue(ctx, OperationKey, op)
}

// WithOperationID adds the resolved operation ID to the context
func WithOperationID(ctx context.Context, operationID int64) context.Context {
	return context.WithValue(ctx, OperationIDKey, operationID)
}

// GetOperationID retrieves the operation ID from context
func GetOperationID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(OperationIDKey).(int64)
	return id, ok
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithAuditLogger adds audit logger to the context
func WithAuditLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
