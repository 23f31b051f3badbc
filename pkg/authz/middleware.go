package authz

import (
	"context"
	"net/http"

	"github.com/ledgerline/backoffice/pkg/contextkeys"
	"github.com/ledgerline/backoffice/pkg/httputil"
)

// OperationLookup resolves whether an operation in scope exists. The
// check runs only after a request clears the guard, so callers without
// a grant cannot distinguish unknown operations from forbidden ones.
type OperationLookup interface {
	OperationExists(ctx context.Context, operationID int64) (bool, error)
}

// Middleware provides HTTP enforcement built on the Guard
type Middleware struct {
	guard  *Guard
	lookup OperationLookup
}

// NewMiddleware creates authorization middleware. lookup may be nil to
// skip operation existence checks.
func NewMiddleware(guard *Guard, lookup OperationLookup) *Middleware {
	return &Middleware{guard: guard, lookup: lookup}
}

// IdentityFromRequest extracts the authenticated identity set by the auth
// middleware. The second return is false when no identity was established.
func IdentityFromRequest(r *http.Request) (Identity, bool) {
	identity, ok := r.Context().Value(contextkeys.IdentityKey).(Identity)
	return identity, ok
}

// RequireAccess enforces (module, action) for the operation in the request
// context. Handlers behind this middleware run only for allowed requests.
func (m *Middleware) RequireAccess(module Module, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromRequest(r)
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			var operationID *int64
			if id, ok := contextkeys.GetOperationID(r.Context()); ok {
				operationID = &id
			}

			decision := m.guard.Enforce(r.Context(), identity, operationID, module, action)
			if !decision.Allowed {
				writeRejection(w, decision)
				return
			}

			if operationID != nil && !m.operationFound(w, r, *operationID) {
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireTeamManagement enforces the role-only team administration gate
func (m *Middleware) RequireTeamManagement() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromRequest(r)
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			operationID, ok := contextkeys.GetOperationID(r.Context())
			if !ok {
				if identity.PlatformRole.Elevated() {
					// Platform operators may manage any team, but team
					// endpoints are always operation-scoped routes, so a
					// missing ID here is a routing bug rather than a
					// permission question.
					httputil.WriteBadRequest(w, "operation context required")
					return
				}
				writeRejection(w, reject(RejectMissingOperationContext, ModuleTeam, ActionManage))
				return
			}

			decision := m.guard.EnforceTeamManagement(r.Context(), identity, operationID)
			if !decision.Allowed {
				writeRejection(w, decision)
				return
			}

			if !m.operationFound(w, r, operationID) {
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// operationFound verifies the scoped operation still exists. It writes
// the response on failure and reports whether the request may proceed.
// Grants can outlive a soft-deleted operation, so an allowed request is
// not proof the operation is live.
func (m *Middleware) operationFound(w http.ResponseWriter, r *http.Request, operationID int64) bool {
	if m.lookup == nil {
		return true
	}
	exists, err := m.lookup.OperationExists(r.Context(), operationID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return false
	}
	if !exists {
		httputil.WriteNotFoundError(w, "operation not found")
		return false
	}
	return true
}

// writeRejection maps a rejected decision onto the HTTP surface
func writeRejection(w http.ResponseWriter, d Decision) {
	switch d.Kind {
	case RejectMissingOperationContext:
		httputil.WriteBadRequest(w, "operation context required")
	case RejectStoreUnavailable:
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "authorization check unavailable")
	default:
		httputil.WriteJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":  "access_denied",
			"module": d.Module,
			"action": d.Action,
		})
	}
}
