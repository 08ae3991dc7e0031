package access

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-featuregate/gate"
)

// SessionPhase is the lifecycle state of the authenticated session.
type SessionPhase string

const (
	PhaseUninitialized   SessionPhase = "uninitialized"
	PhaseChecking        SessionPhase = "checking"
	PhaseAuthenticated   SessionPhase = "authenticated"
	PhaseUnauthenticated SessionPhase = "unauthenticated"
)

// sessionPhaseGraph is the allowed transition set. Authenticated is only left
// through logout (or a failed refresh, which funnels into logout); it is only
// entered through a successful login, registration, or refresh.
var sessionPhaseGraph = map[SessionPhase]map[SessionPhase]struct{}{
	PhaseUninitialized: {
		PhaseChecking:        {},
		PhaseAuthenticated:   {},
		PhaseUnauthenticated: {},
	},
	PhaseChecking: {
		PhaseAuthenticated:   {},
		PhaseUnauthenticated: {},
	},
	PhaseAuthenticated: {
		PhaseUnauthenticated: {},
	},
	PhaseUnauthenticated: {
		PhaseAuthenticated: {},
	},
}

// Controller orchestrates login, registration, the silent startup refresh,
// and logout. It is the sole writer of the SessionStore and of the persisted
// token; everything else reads through SessionReader.
type Controller struct {
	mu    sync.RWMutex
	phase SessionPhase

	client   IdentityClient
	tokens   TokenStore
	store    *SessionStore
	logger   Logger
	sink     ActivitySink
	features gate.FeatureGate
	now      func() time.Time
}

// ControllerOption customizes controller construction.
type ControllerOption func(*Controller)

// WithControllerLogger overrides the controller logger.
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithActivitySink configures an ActivitySink for emitting session events.
func WithActivitySink(sink ActivitySink) ControllerOption {
	return func(c *Controller) {
		c.sink = normalizeActivitySink(sink)
	}
}

// WithFeatureGate wires a feature gate; today it only guards the password
// reset flows.
func WithFeatureGate(features gate.FeatureGate) ControllerOption {
	return func(c *Controller) {
		c.features = features
	}
}

// WithControllerClock injects a custom clock (useful for tests).
func WithControllerClock(clock func() time.Time) ControllerOption {
	return func(c *Controller) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithControllerSessionStore overrides the internally built store, letting an
// embedder share one store between the controller and its router wiring.
func WithControllerSessionStore(store *SessionStore) ControllerOption {
	return func(c *Controller) {
		if store != nil {
			c.store = store
		}
	}
}

// NewController returns a controller in the Uninitialized phase.
func NewController(client IdentityClient, tokens TokenStore, opts ...ControllerOption) *Controller {
	c := &Controller{
		phase:  PhaseUninitialized,
		client: client,
		tokens: tokens,
		store:  NewSessionStore(),
		logger: defLogger{},
		sink:   noopActivitySink{},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Session exposes the read-only view consumed by guards and templates.
func (c *Controller) Session() SessionReader {
	return c.store
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() SessionPhase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// IsLoading is true only while the startup check runs; guards must block
// protected rendering during it to avoid a false unauthenticated flash.
func (c *Controller) IsLoading() bool {
	return c.Phase() == PhaseChecking
}

// IsAuthenticated reports whether a live session is present.
func (c *Controller) IsAuthenticated() bool {
	return c.Phase() == PhaseAuthenticated && c.store.IsAuthenticated()
}

func (c *Controller) setPhase(to SessionPhase) {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.phase
	if from == to {
		return
	}

	if allowed, ok := sessionPhaseGraph[from]; ok {
		if _, legal := allowed[to]; legal {
			c.phase = to
			return
		}
	}

	// Transitions outside the graph point at a wiring bug; log and hold the
	// current phase rather than corrupting the lifecycle.
	c.logger.Error("illegal session phase change %s -> %s", from, to)
}

func (c *Controller) compareAndSwapPhase(from, to SessionPhase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != from {
		return false
	}
	c.phase = to
	return true
}

// Start performs the one-time startup check: if a token survived the last
// run, silently refresh against the backend; otherwise settle into
// Unauthenticated. Calling Start twice is a no-op.
func (c *Controller) Start(ctx context.Context) {
	if !c.compareAndSwapPhase(PhaseUninitialized, PhaseChecking) {
		return
	}

	if _, err := c.tokens.Load(ctx); err != nil {
		if err != ErrNoPersistedToken {
			c.logger.Warn("token store read failed on startup: %v", err)
		}
		c.store.clear()
		c.setPhase(PhaseUnauthenticated)
		return
	}

	c.Refresh(ctx)
}

// Login exchanges credentials for a session. On any failure the prior
// session, if one exists, is left untouched and false is returned; failures
// are diagnostics, never panics.
func (c *Controller) Login(ctx context.Context, phone, password string) bool {
	token, user, err := c.client.Login(ctx, phone, password)
	if err != nil {
		c.logger.Error("login failed: %v", err)
		c.emit(ctx, ActivityEventLoginFailure, nil, map[string]any{
			"phone": phone,
			"error": err.Error(),
		})
		return false
	}

	c.adoptSession(ctx, token, user)
	c.emit(ctx, ActivityEventLoginSuccess, user, nil)
	return true
}

// Register submits the signup profile. When the backend auto-issues a token
// the session is populated exactly as in Login; otherwise the caller stays
// unauthenticated and must log in.
func (c *Controller) Register(ctx context.Context, payload RegisterPayload) bool {
	token, user, err := c.client.Register(ctx, payload)
	if err != nil {
		c.logger.Error("registration failed: %v", err)
		c.emit(ctx, ActivityEventRegisterFailure, nil, map[string]any{
			"phone": payload.Phone,
			"error": err.Error(),
		})
		return false
	}

	if token != "" && user != nil {
		c.adoptSession(ctx, token, user)
	}

	c.emit(ctx, ActivityEventRegisterSuccess, user, nil)
	return true
}

// Refresh revalidates the persisted token against the backend and replaces
// the session user with the canonical copy. Idempotent: a second call with a
// still-valid token yields the same snapshot. Any failure, expired token,
// transport error, malformed response, falls through to Logout so a dead
// token never backs an authenticated UI.
func (c *Controller) Refresh(ctx context.Context) {
	token, err := c.tokens.Load(ctx)
	if err != nil {
		if err != ErrNoPersistedToken {
			c.logger.Warn("token store read failed: %v", err)
		}
		c.Logout()
		return
	}

	user, err := c.client.Refresh(ctx, token)
	if err != nil {
		c.logger.Warn("session refresh failed, logging out: %v", err)
		c.emit(ctx, ActivityEventRefreshFailure, nil, map[string]any{
			"error": err.Error(),
		})
		c.Logout()
		return
	}

	subscription := c.fetchSubscription(ctx, token, user)
	if err := c.store.replace(user, token, subscription); err != nil {
		c.logger.Error("refresh produced an unusable session: %v", err)
		c.Logout()
		return
	}

	c.setPhase(PhaseAuthenticated)
}

// Logout is synchronous and always succeeds: it clears the durable token and
// the in-memory session and settles into Unauthenticated. It never calls the
// backend; the advisory auth/logout endpoint is the embedder's choice.
func (c *Controller) Logout() {
	if err := c.tokens.Clear(context.Background()); err != nil {
		c.logger.Warn("failed to clear persisted token: %v", err)
	}

	user := c.store.CurrentUser()
	c.store.clear()
	c.setPhase(PhaseUnauthenticated)
	c.emit(context.Background(), ActivityEventLogout, user, nil)
}

// HandleAuthError escalates a backend "token is dead" response to an
// unconditional session wipe. Returns true when the error was consumed that
// way; other errors are left for the caller.
func (c *Controller) HandleAuthError(err error) bool {
	if !IsTokenInvalidError(err) {
		return false
	}

	c.logger.Warn("backend invalidated the bearer token, wiping session: %v", err)
	c.Logout()
	return true
}

// ForgotPassword triggers the reset flow for the given phone. Gated by the
// deployment's feature gate when one is configured.
func (c *Controller) ForgotPassword(ctx context.Context, phone string) error {
	if err := c.requirePasswordResetFeature(ctx); err != nil {
		return err
	}
	return c.client.ForgotPassword(ctx, phone)
}

// ChangePassword submits a password change over the authenticated transport.
func (c *Controller) ChangePassword(ctx context.Context, payload ChangePasswordPayload) error {
	if err := c.requirePasswordResetFeature(ctx); err != nil {
		return err
	}

	token, _ := c.store.Token()
	err := c.client.ChangePassword(ctx, token, payload)
	if err != nil && c.HandleAuthError(err) {
		return err
	}
	return err
}

// adoptSession installs a fresh token/user pair: persist, replace, settle
// into Authenticated. Last completed call wins; callers serialize UI-side.
func (c *Controller) adoptSession(ctx context.Context, token string, user *User) {
	if err := c.tokens.Save(ctx, token); err != nil {
		// The session still works for this run; only the next startup
		// refresh is lost.
		c.logger.Warn("failed to persist token: %v", err)
	}

	subscription := c.fetchSubscription(ctx, token, user)
	if err := c.store.replace(user, token, subscription); err != nil {
		c.logger.Error("unusable session after login: %v", err)
		return
	}

	c.setPhase(PhaseAuthenticated)
}

// fetchSubscription loads the tenant's billing record for dairy operators.
// Farmers and admins carry no subscription concept; fetch failures degrade to
// "no record" rather than blocking login.
func (c *Controller) fetchSubscription(ctx context.Context, token string, user *User) *SubscriptionRecord {
	if user == nil || user.Role != RoleDairy {
		return nil
	}

	record, err := c.client.ActiveSubscription(ctx, token, user.DairyID)
	if err != nil {
		c.logger.Warn("subscription fetch failed for dairy %s: %v", user.DairyID, err)
		return nil
	}

	return record
}

func (c *Controller) emit(ctx context.Context, eventType ActivityEventType, user *User, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Metadata:   metadata,
		OccurredAt: c.now(),
	}

	if user != nil {
		event.UserID = user.ID.String()
		event.Role = user.Role
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	sink := normalizeActivitySink(c.sink)
	if err := sink.Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}
