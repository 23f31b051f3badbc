package authz

// DefaultsFor produces the seed permission template for a role. It is used to
// populate a grant's permissions when the grant is created or reset, and only
// then; the resolver hard-codes the viewer baseline so that changes here can
// never retroactively widen or narrow existing grants.
func DefaultsFor(role Role) PermissionSet {
	ps := make(PermissionSet, len(moduleActions))
	for module, actions := range moduleActions {
		set := make(ActionSet, len(actions))
		for _, action := range actions {
			switch role {
			case RoleOwner, RoleAdmin:
				set[action] = true
			default:
				// Viewers keep read-style actions only
				set[action] = action == ActionView || action == ActionExport
			}
		}
		ps[module] = set
	}
	return ps
}
