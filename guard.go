package access

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteGuard is the sole consumer of the decision engine on the navigation
// path. It runs per request, so every path change is re-evaluated against the
// live session.
type RouteGuard struct {
	controller *Controller
	engine     *DecisionEngine
	cfg        Config
	Logger     Logger
	sink       ActivitySink
}

// RouteGuardOption customizes guard construction.
type RouteGuardOption func(*RouteGuard)

// WithGuardLogger overrides the guard logger.
func WithGuardLogger(logger Logger) RouteGuardOption {
	return func(g *RouteGuard) {
		if logger != nil {
			g.Logger = logger
		}
	}
}

// WithGuardActivitySink records access denials for observability.
func WithGuardActivitySink(sink ActivitySink) RouteGuardOption {
	return func(g *RouteGuard) {
		g.sink = normalizeActivitySink(sink)
	}
}

// NewRouteGuard wires the lifecycle controller and decision engine into a
// router middleware.
func NewRouteGuard(controller *Controller, engine *DecisionEngine, cfg Config, opts ...RouteGuardOption) *RouteGuard {
	g := &RouteGuard{
		controller: controller,
		engine:     engine,
		cfg:        cfg,
		Logger:     defLogger{},
		sink:       noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Middleware returns the guard as router middleware.
func (g *RouteGuard) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			return g.handle(c, next)
		}
	}
}

func (g *RouteGuard) handle(c router.Context, next router.HandlerFunc) error {
	// While the startup refresh runs no access decision is trustworthy;
	// render the neutral loading view instead of flashing "unauthenticated".
	if g.controller.IsLoading() {
		return c.Render(g.cfg.GetLoadingView(), router.ViewContext{})
	}

	if !g.controller.IsAuthenticated() {
		g.SetRedirect(c)
		return c.Redirect(g.cfg.GetLoginRoute(), redirectStatus(c))
	}

	session := g.controller.Session()
	role, _ := session.Role()
	path := c.Path()
	hasSubscription := session.HasActiveSubscription()

	if g.engine.CanAccessRoute(role, path, hasSubscription) {
		c.SetContext(WithSession(c.Context(), session))
		return next(c)
	}

	target := denialRedirect(role, hasSubscription, path)

	g.Logger.Info(
		"route access denied path=%s role=%s has_subscription=%t redirect=%s",
		path, role, hasSubscription, target,
	)

	if g.cfg.GetDebug() {
		g.Logger.Debug("denied policy entry: %s", print.MaybePrettyJSON(g.engine.table[path]))
	}

	g.emitDenial(c, session, role, path, hasSubscription, target)

	return c.Redirect(target, redirectStatus(c))
}

// denialRedirect picks the role-aware landing spot for a denied navigation: a
// dairy operator without an active subscription is steered to the plans
// screen (unless already there, to avoid a loop); every other denial lands on
// the root route.
func denialRedirect(role Role, hasSubscription bool, path string) string {
	if role == RoleDairy && !hasSubscription && path != RouteSubscriptionPlans {
		return RouteSubscriptionPlans
	}
	return RouteRoot
}

func redirectStatus(c router.Context) int {
	if c.Method() == string(router.GET) {
		return fiber.StatusFound
	}
	return fiber.StatusSeeOther
}

// SetRedirect remembers the rejected route so the login flow can send the
// user back after authenticating.
func (g *RouteGuard) SetRedirect(c router.Context) {
	rejectedRoute := g.cfg.GetRejectedRouteKey()

	c.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    c.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// GetRedirect consumes the remembered rejected route, falling back to def.
func (g *RouteGuard) GetRedirect(c router.Context, def ...string) string {
	rejectedRoute := g.cfg.GetRejectedRouteKey()
	r := c.Cookies(rejectedRoute)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return RouteRoot
	}
	g.cookieDel(c, rejectedRoute)
	return r
}

func (g *RouteGuard) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) emitDenial(c router.Context, session SessionReader, role Role, path string, hasSubscription bool, target string) {
	event := ActivityEvent{
		EventType: ActivityEventAccessDenied,
		Role:      role,
		Path:      path,
		Metadata: map[string]any{
			"has_subscription": hasSubscription,
			"redirect":         target,
		},
		OccurredAt: time.Now(),
	}

	if user := session.CurrentUser(); user != nil {
		event.UserID = user.ID.String()
	}

	sink := normalizeActivitySink(g.sink)
	if err := sink.Record(c.Context(), event); err != nil {
		g.Logger.Warn("activity sink record error: %v", err)
	}
}
