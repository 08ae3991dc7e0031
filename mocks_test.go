package access_test

import (
	"context"
	"io"
	"mime/multipart"
	"sync"

	"github.com/dairyops/go-access"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
)

// stubIdentityClient implements access.IdentityClient with swappable
// function fields; unset operations fail loudly.
type stubIdentityClient struct {
	login        func(ctx context.Context, phone, password string) (string, *access.User, error)
	register     func(ctx context.Context, payload access.RegisterPayload) (string, *access.User, error)
	refresh      func(ctx context.Context, token string) (*access.User, error)
	logout       func(ctx context.Context, token string) error
	forgot       func(ctx context.Context, phone string) error
	change       func(ctx context.Context, token string, payload access.ChangePasswordPayload) error
	subscription func(ctx context.Context, token, dairyID string) (*access.SubscriptionRecord, error)
}

var _ access.IdentityClient = (*stubIdentityClient)(nil)

func (s *stubIdentityClient) Login(ctx context.Context, phone, password string) (string, *access.User, error) {
	if s.login == nil {
		return "", nil, access.ErrBackendUnavailable
	}
	return s.login(ctx, phone, password)
}

func (s *stubIdentityClient) Register(ctx context.Context, payload access.RegisterPayload) (string, *access.User, error) {
	if s.register == nil {
		return "", nil, access.ErrBackendUnavailable
	}
	return s.register(ctx, payload)
}

func (s *stubIdentityClient) Refresh(ctx context.Context, token string) (*access.User, error) {
	if s.refresh == nil {
		return nil, access.ErrBackendUnavailable
	}
	return s.refresh(ctx, token)
}

func (s *stubIdentityClient) Logout(ctx context.Context, token string) error {
	if s.logout == nil {
		return nil
	}
	return s.logout(ctx, token)
}

func (s *stubIdentityClient) ForgotPassword(ctx context.Context, phone string) error {
	if s.forgot == nil {
		return access.ErrBackendUnavailable
	}
	return s.forgot(ctx, phone)
}

func (s *stubIdentityClient) ChangePassword(ctx context.Context, token string, payload access.ChangePasswordPayload) error {
	if s.change == nil {
		return access.ErrBackendUnavailable
	}
	return s.change(ctx, token, payload)
}

func (s *stubIdentityClient) ActiveSubscription(ctx context.Context, token, dairyID string) (*access.SubscriptionRecord, error) {
	if s.subscription == nil {
		return nil, nil
	}
	return s.subscription(ctx, token, dairyID)
}

// recordingSink captures activity events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []access.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event access.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) byType(t access.ActivityEventType) []access.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []access.ActivityEvent
	for _, e := range r.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

// MockContext mocks router.Context for guard tests. Methods the guard
// exercises go through testify expectations; the rest satisfy the interface
// with zero values.
type MockContext struct {
	mock.Mock
	ctx context.Context
}

func newMockContext() *MockContext {
	return &MockContext{ctx: context.Background()}
}

func (m *MockContext) Next() error { return nil }

func (m *MockContext) Context() context.Context {
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}

func (m *MockContext) SetContext(ctx context.Context) { m.ctx = ctx }

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte                            { return nil }
func (m *MockContext) Status(int) router.Context               { return m }
func (m *MockContext) SendString(string) error                 { return nil }
func (m *MockContext) Send([]byte) error                       { return nil }
func (m *MockContext) JSON(int, any) error                     { return nil }
func (m *MockContext) NoContent(int) error                     { return nil }
func (m *MockContext) SetHeader(string, string) router.Context { return m }
func (m *MockContext) Header(string) string                    { return "" }
func (m *MockContext) Get(string, any) any                     { return nil }
func (m *MockContext) GetBool(string, bool) bool               { return false }
func (m *MockContext) GetInt(string, int) int                  { return 0 }
func (m *MockContext) Set(string, any)                         {}
func (m *MockContext) Bind(any) error                          { return nil }
func (m *MockContext) BindJSON(any) error                      { return nil }
func (m *MockContext) BindXML(any) error                       { return nil }
func (m *MockContext) BindQuery(any) error                     { return nil }
func (m *MockContext) CookieParser(any) error                  { return nil }

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *MockContext) ParamsInt(string, int) int        { return 0 }
func (m *MockContext) Query(string, ...string) string   { return "" }
func (m *MockContext) QueryValues(string) []string      { return nil }
func (m *MockContext) QueryInt(string, int) int         { return 0 }
func (m *MockContext) Queries() map[string]string       { return nil }
func (m *MockContext) GetString(string, string) string  { return "" }
func (m *MockContext) Locals(key any, value ...any) any { return nil }
func (m *MockContext) LocalsMerge(any, map[string]any) map[string]any {
	return nil
}
func (m *MockContext) OnNext(func() error) {}
func (m *MockContext) Referer() string     { return "" }
func (m *MockContext) FormFile(string) (*multipart.FileHeader, error) {
	return nil, nil
}
func (m *MockContext) FormValue(string, ...string) string { return "" }
func (m *MockContext) IP() string                         { return "" }
func (m *MockContext) SendStatus(int) error               { return nil }
func (m *MockContext) SendStream(io.Reader) error         { return nil }
func (m *MockContext) RouteName() string                  { return "" }
func (m *MockContext) RouteParams() map[string]string     { return nil }

func (m *MockContext) RedirectToRoute(string, router.ViewContext, ...int) error { return nil }
func (m *MockContext) RedirectBack(string, ...int) error                        { return nil }
