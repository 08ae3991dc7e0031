package access

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// IdentityClient talks to the identity/billing backend. Implementations must
// be safe for concurrent use; the bearer token is an opaque string the client
// never inspects.
type IdentityClient interface {
	Login(ctx context.Context, phone, password string) (string, *User, error)
	Register(ctx context.Context, payload RegisterPayload) (string, *User, error)
	Refresh(ctx context.Context, token string) (*User, error)
	Logout(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, phone string) error
	ChangePassword(ctx context.Context, token string, payload ChangePasswordPayload) error
	ActiveSubscription(ctx context.Context, token, dairyID string) (*SubscriptionRecord, error)
}

// TokenStore owns the single durable key holding the bearer token. Absence of
// the key is equivalent to an unauthenticated session.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// SessionReader is the narrow read view of the current session handed to
// navigation and rendering code. Only the SessionLifecycleController writes.
type SessionReader interface {
	IsAuthenticated() bool
	CurrentUser() *User
	Role() (Role, bool)
	Token() (string, bool)
	Subscription() *SubscriptionRecord
	HasActiveSubscription() bool
}

// Config holds the engine's external knobs.
type Config interface {
	GetBaseURL() string
	GetHTTPTimeout() time.Duration
	GetTokenStorageKey() string
	GetPhoneRegion() string
	GetLoginRoute() string
	GetLoadingView() string
	GetRejectedRouteKey() string
	GetDebug() bool
}

// SimpleConfig is a plain struct Config for embedders that do not carry their
// own configuration layer.
type SimpleConfig struct {
	BaseURL          string
	HTTPTimeout      time.Duration
	TokenStorageKey  string
	PhoneRegion      string
	LoginRoute       string
	LoadingView      string
	RejectedRouteKey string
	Debug            bool
}

func (c SimpleConfig) GetBaseURL() string { return c.BaseURL }

func (c SimpleConfig) GetHTTPTimeout() time.Duration {
	if c.HTTPTimeout <= 0 {
		return 10 * time.Second
	}
	return c.HTTPTimeout
}

func (c SimpleConfig) GetTokenStorageKey() string {
	if c.TokenStorageKey == "" {
		return "dairy_access_token"
	}
	return c.TokenStorageKey
}

func (c SimpleConfig) GetPhoneRegion() string {
	if c.PhoneRegion == "" {
		return "IN"
	}
	return c.PhoneRegion
}

func (c SimpleConfig) GetLoginRoute() string {
	if c.LoginRoute == "" {
		return RouteLogin
	}
	return c.LoginRoute
}

func (c SimpleConfig) GetLoadingView() string {
	if c.LoadingView == "" {
		return "loading"
	}
	return c.LoadingView
}

func (c SimpleConfig) GetRejectedRouteKey() string {
	if c.RejectedRouteKey == "" {
		return "rejected_route"
	}
	return c.RejectedRouteKey
}

func (c SimpleConfig) GetDebug() bool { return c.Debug }

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCESS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCESS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCESS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCESS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
