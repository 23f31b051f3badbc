package authz

import (
	"context"
	"fmt"

	"github.com/ledgerline/backoffice/pkg/observability"
)

// Resolver is the pure permission decision function. It holds no mutable
// state, so a single instance is safe for concurrent use across requests.
type Resolver struct {
	store  Store
	logger *observability.Logger
}

// NewResolver creates a resolver over the given grant store. All dependencies
// are injected here; Resolve performs no ambient lookups.
func NewResolver(store Store, logger *observability.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger,
	}
}

// Resolve decides whether identity may perform action on module inside the
// operation. The decision is deterministic for a fixed grant state and fails
// closed: missing grants, malformed overrides and unknown roles all deny.
// A non-nil error means the store could not answer; callers must treat that
// as a denial, never as an allowance.
func (r *Resolver) Resolve(ctx context.Context, identity Identity, operationID int64, module Module, action Action) (bool, error) {
	// Platform roles are a global override; tenant state is not consulted.
	if identity.PlatformRole.Elevated() {
		return true, nil
	}

	grant, err := r.store.GetGrant(ctx, identity.UserID, operationID)
	if err == ErrGrantNotFound {
		// Absence of a grant is an explicit denial.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("grant lookup for user %d in operation %d: %w", identity.UserID, operationID, err)
	}

	switch grant.Role {
	case RoleOwner, RoleAdmin:
		// Role dominates any permissions override: an owner or admin cannot
		// be narrowed by a stale permissions blob.
		return true, nil
	case RoleViewer:
		if grant.Permissions == nil {
			return action == ActionView, nil
		}
		// A non-nil override fully replaces the viewer baseline. A missing
		// module or action key denies; it does not fall back to the default.
		return grant.Permissions.Allows(module, action), nil
	default:
		// Stored role outside the enumerated set. Deny loudly rather than
		// relying on a silent fallthrough.
		r.logger.WithFields(map[string]interface{}{
			"user_id":      grant.UserID,
			"operation_id": grant.OperationID,
			"role":         string(grant.Role),
		}).Error("access grant carries unrecognized role, denying")
		return false, nil
	}
}
