package authz

import (
	"context"
	"time"

	"github.com/ledgerline/backoffice/pkg/observability"
)

// RejectKind is the machine-readable reason a check was rejected
type RejectKind string

const (
	// RejectMissingOperationContext means a non-platform identity supplied no operation
	RejectMissingOperationContext RejectKind = "missing_operation_context"
	// RejectAccessDenied means resolution returned false or no grant exists
	RejectAccessDenied RejectKind = "access_denied"
	// RejectStoreUnavailable means the grant store could not answer; the check fails closed
	RejectStoreUnavailable RejectKind = "store_unavailable"
)

// Decision is the outcome of an enforcement check. A rejected decision carries
// the kind plus the module/action that failed, suitable for logging and for
// client UX without leaking grant data.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Kind    RejectKind `json:"kind,omitempty"`
	Module  Module     `json:"module,omitempty"`
	Action  Action     `json:"action,omitempty"`

	// Err holds the underlying store fault for RejectStoreUnavailable.
	// It is surfaced to the caller as an internal error, never as an allow.
	Err error `json:"-"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

func reject(kind RejectKind, module Module, action Action) Decision {
	return Decision{Kind: kind, Module: module, Action: action}
}

// Guard wraps protected operations with permission enforcement. It resolves
// the decision through the Resolver and reports the outcome; it never retries
// a denied check with elevated context.
type Guard struct {
	resolver *Resolver
	store    Store
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewGuard creates a guard. metrics may be nil when metrics are disabled.
func NewGuard(resolver *Resolver, store Store, logger *observability.Logger, metrics *observability.Metrics) *Guard {
	return &Guard{
		resolver: resolver,
		store:    store,
		logger:   logger,
		metrics:  metrics,
	}
}

// Enforce checks identity against (operationID, module, action). operationID
// may be nil only for platform-elevated identities; anyone else is rejected
// before the store is touched.
func (g *Guard) Enforce(ctx context.Context, identity Identity, operationID *int64, module Module, action Action) Decision {
	start := time.Now()

	if identity.PlatformRole.Elevated() {
		d := allow()
		g.observe(ctx, identity, operationID, module, action, d, start)
		return d
	}

	if operationID == nil {
		d := reject(RejectMissingOperationContext, module, action)
		g.observe(ctx, identity, operationID, module, action, d, start)
		return d
	}

	allowed, err := g.resolver.Resolve(ctx, identity, *operationID, module, action)
	var d Decision
	switch {
	case err != nil:
		d = reject(RejectStoreUnavailable, module, action)
		d.Err = err
	case allowed:
		d = allow()
	default:
		d = reject(RejectAccessDenied, module, action)
	}

	g.observe(ctx, identity, operationID, module, action, d, start)
	return d
}

// EnforceTeamManagement gates team-administration actions (inviting and
// removing members, changing roles). It is a role-only check: granular
// permission overrides, including permissions.team.manage, are deliberately
// ignored, because granting team administration piecemeal would let a
// non-admin escalate other members' access.
func (g *Guard) EnforceTeamManagement(ctx context.Context, identity Identity, operationID int64) Decision {
	start := time.Now()

	if identity.PlatformRole.Elevated() {
		d := allow()
		g.observe(ctx, identity, &operationID, ModuleTeam, ActionManage, d, start)
		return d
	}

	grant, err := g.store.GetGrant(ctx, identity.UserID, operationID)
	var d Decision
	switch {
	case err == ErrGrantNotFound:
		d = reject(RejectAccessDenied, ModuleTeam, ActionManage)
	case err != nil:
		d = reject(RejectStoreUnavailable, ModuleTeam, ActionManage)
		d.Err = err
	case grant.Role == RoleOwner || grant.Role == RoleAdmin:
		d = allow()
	default:
		d = reject(RejectAccessDenied, ModuleTeam, ActionManage)
	}

	g.observe(ctx, identity, &operationID, ModuleTeam, ActionManage, d, start)
	return d
}

// observe emits the structured decision log line and metrics. Advisory only;
// nothing here feeds back into the decision.
func (g *Guard) observe(ctx context.Context, identity Identity, operationID *int64, module Module, action Action, d Decision, start time.Time) {
	fields := map[string]interface{}{
		"user_id": identity.UserID,
		"module":  string(module),
		"action":  string(action),
	}
	if operationID != nil {
		fields["operation_id"] = *operationID
	}

	logger := g.logger.WithFields(fields)

	outcome := "allowed"
	switch {
	case d.Allowed:
		logger.Debug("access allowed")
	case d.Kind == RejectStoreUnavailable:
		outcome = "store_unavailable"
		logger.WithError(d.Err).Error("access check failed, denying")
	default:
		outcome = string(d.Kind)
		logger.Info("access denied")
	}

	if g.metrics != nil {
		g.metrics.AuthzChecksTotal.WithLabelValues(outcome, string(module), string(action)).Inc()
		g.metrics.AuthzCheckDuration.WithLabelValues(string(module)).Observe(time.Since(start).Seconds())
	}
}
