package access

// Navigable top-level routes of the console. The guard and the policy table
// both key off these constants so a renamed screen cannot drift between them.
const (
	RouteRoot                   = "/"
	RouteLogin                  = "/login"
	RouteMilkCollection         = "/milk-collection"
	RouteCustomers              = "/customers"
	RouteFarmers                = "/farmers"
	RouteProducts               = "/products"
	RoutePayments               = "/payments"
	RouteReports                = "/reports"
	RouteSubscriptionPlans      = "/subscription-plans"
	RouteAdminSubscriptionPlans = "/admin-subscription-plans"
	RouteDairyListing           = "/dairy-listing"
	RouteFarmerListing          = "/farmer-listing"
	RouteProfile                = "/profile"
)

// RoutePolicy is one compiled-in rule: who may enter a path, what CRUD grant
// they get there, and whether an active subscription is additionally required.
type RoutePolicy struct {
	Path                 string
	AllowedRoles         []Role
	Permissions          PermissionSet
	RequiresSubscription bool
}

func (p RoutePolicy) allows(role Role) bool {
	for _, allowed := range p.AllowedRoles {
		if allowed == role {
			return true
		}
	}
	return false
}

// PolicyTable maps each navigable path to its policy. Paths absent from the
// table are implicitly denied.
type PolicyTable map[string]RoutePolicy

var fullAccess = PermissionSet{CanView: true, CanCreate: true, CanEdit: true, CanDelete: true}
var viewOnly = PermissionSet{CanView: true}

// DefaultPolicyTable returns the console's route policy. Subscription gating
// applies to the Dairy role only; routes an unsubscribed operator must still
// reach (the plans screen, their profile, the dashboard) carry
// RequiresSubscription: false.
func DefaultPolicyTable() PolicyTable {
	policies := []RoutePolicy{
		{
			Path:         RouteRoot,
			AllowedRoles: []Role{RoleAdmin, RoleDairy, RoleFarmer},
			Permissions:  viewOnly,
		},
		{
			Path:                 RouteMilkCollection,
			AllowedRoles:         []Role{RoleDairy, RoleFarmer},
			Permissions:          fullAccess,
			RequiresSubscription: true,
		},
		{
			Path:                 RouteCustomers,
			AllowedRoles:         []Role{RoleDairy},
			Permissions:          fullAccess,
			RequiresSubscription: true,
		},
		{
			Path:                 RouteFarmers,
			AllowedRoles:         []Role{RoleDairy},
			Permissions:          fullAccess,
			RequiresSubscription: true,
		},
		{
			Path:                 RouteProducts,
			AllowedRoles:         []Role{RoleDairy},
			Permissions:          fullAccess,
			RequiresSubscription: true,
		},
		{
			Path:                 RoutePayments,
			AllowedRoles:         []Role{RoleDairy},
			Permissions:          PermissionSet{CanView: true, CanCreate: true, CanEdit: true},
			RequiresSubscription: true,
		},
		{
			// Reports are visible to allowed roles but never editable in place.
			Path:                 RouteReports,
			AllowedRoles:         []Role{RoleAdmin, RoleDairy},
			Permissions:          viewOnly,
			RequiresSubscription: true,
		},
		{
			// Redirect target for unsubscribed operators; must stay reachable.
			Path:         RouteSubscriptionPlans,
			AllowedRoles: []Role{RoleDairy},
			Permissions:  PermissionSet{CanView: true, CanCreate: true},
		},
		{
			Path:         RouteAdminSubscriptionPlans,
			AllowedRoles: []Role{RoleAdmin},
			Permissions:  fullAccess,
		},
		{
			Path:         RouteDairyListing,
			AllowedRoles: []Role{RoleAdmin},
			Permissions:  fullAccess,
		},
		{
			Path:         RouteFarmerListing,
			AllowedRoles: []Role{RoleAdmin},
			Permissions:  viewOnly,
		},
		{
			Path:         RouteProfile,
			AllowedRoles: []Role{RoleAdmin, RoleDairy, RoleFarmer},
			Permissions:  PermissionSet{CanView: true, CanEdit: true},
		},
	}

	table := make(PolicyTable, len(policies))
	for _, p := range policies {
		table[p.Path] = p
	}
	return table
}

// DecisionEngine combines the policy table, the role model, and the resolved
// subscription state into the single access verdict consumed at navigation
// time. Both public entry points share one internal decision so the farmer
// override cannot drift between them.
type DecisionEngine struct {
	table  PolicyTable
	logger Logger
}

// EngineOption customizes engine construction.
type EngineOption func(*DecisionEngine)

// WithPolicyTable overrides the compiled-in table.
func WithPolicyTable(table PolicyTable) EngineOption {
	return func(e *DecisionEngine) {
		if table != nil {
			e.table = table
		}
	}
}

// WithEngineLogger overrides the engine's logger.
func WithEngineLogger(logger Logger) EngineOption {
	return func(e *DecisionEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewDecisionEngine returns an engine over the default policy table unless
// overridden.
func NewDecisionEngine(opts ...EngineOption) *DecisionEngine {
	e := &DecisionEngine{
		table:  DefaultPolicyTable(),
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// CanAccessRoute decides whether the role may enter the path given the
// current subscription state. It is total: any input yields a boolean, never
// a panic; unknown paths and invalid roles deny.
func (e *DecisionEngine) CanAccessRoute(role Role, path string, hasActiveSubscription bool) bool {
	_, ok := e.decide(role, path, hasActiveSubscription)
	return ok
}

// RoutePermissions applies the same gates as CanAccessRoute and, when access
// is granted, returns the route's CRUD grant. The second return value lets
// consumers distinguish "cannot see this route at all" from "can see it with
// reduced rights".
func (e *DecisionEngine) RoutePermissions(role Role, path string, hasActiveSubscription bool) (PermissionSet, bool) {
	policy, ok := e.decide(role, path, hasActiveSubscription)
	if !ok {
		return PermissionSet{}, false
	}
	return policy.Permissions, true
}

// decide is the one authoritative gate sequence. Ordering matters: role
// membership is checked before subscription so an unauthorized role is denied
// identically regardless of billing state, and the farmer override sits
// before the subscription gate so the collection screen is never billed-gated
// for farmers.
func (e *DecisionEngine) decide(role Role, path string, hasActiveSubscription bool) (RoutePolicy, bool) {
	policy, found := e.table[path]
	if !found {
		e.logger.Debug("access denied: unknown route %q role %s", path, role)
		return RoutePolicy{}, false
	}

	if !role.IsValid() || !policy.allows(role) {
		e.logger.Debug("access denied: role %s not allowed on %q", role, path)
		return RoutePolicy{}, false
	}

	if role == RoleFarmer && path == RouteMilkCollection {
		return policy, true
	}

	if role == RoleDairy && policy.RequiresSubscription && !hasActiveSubscription {
		e.logger.Debug("access denied: subscription required on %q", path)
		return RoutePolicy{}, false
	}

	return policy, true
}
