package access

import (
	"fmt"
	"sync"
)

// Session pairs the opaque bearer token with the user it represents. The two
// are set and cleared together; at no observable point does one exist without
// the other.
type Session struct {
	user  *User
	token string
}

// NewSession builds an authenticated session. Both parts are required.
func NewSession(user *User, token string) (Session, error) {
	if user == nil || token == "" {
		return Session{}, ErrSessionInvariant
	}
	return Session{user: user, token: token}, nil
}

// Authenticated reports whether the session carries an identity.
func (s Session) Authenticated() bool {
	return s.user != nil && s.token != ""
}

// User returns a copy of the session's user so readers cannot mutate the
// canonical record.
func (s Session) User() *User {
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Token returns the opaque bearer string.
func (s Session) Token() string {
	return s.token
}

func (s Session) String() string {
	if !s.Authenticated() {
		return "session=<anonymous>"
	}
	return fmt.Sprintf("session user=%s role=%s", s.user.ID, s.user.Role)
}

// SessionStore holds the process-wide current session plus the wholesale-
// replaced subscription record of the user's tenant. The lifecycle controller
// is the only writer: mutating methods are unexported, consumers receive the
// store through the SessionReader interface.
type SessionStore struct {
	mu           sync.RWMutex
	session      Session
	subscription *SubscriptionRecord
	resolver     *SubscriptionResolver
}

var _ SessionReader = (*SessionStore)(nil)

// SessionStoreOption customizes store construction.
type SessionStoreOption func(*SessionStore)

// WithSessionResolver overrides the resolver used to derive the effective
// subscription state on read.
func WithSessionResolver(resolver *SubscriptionResolver) SessionStoreOption {
	return func(s *SessionStore) {
		if resolver != nil {
			s.resolver = resolver
		}
	}
}

// NewSessionStore returns an empty, unauthenticated store.
func NewSessionStore(opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		resolver: NewSubscriptionResolver(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// replace swaps in a new authenticated session and its tenant subscription as
// one atomic update. Caller is the lifecycle controller only.
func (s *SessionStore) replace(user *User, token string, subscription *SubscriptionRecord) error {
	session, err := NewSession(user, token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	s.subscription = subscription
	return nil
}

// clear drops the session and subscription together.
func (s *SessionStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = Session{}
	s.subscription = nil
}

// IsAuthenticated reports whether a session is present.
func (s *SessionStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Authenticated()
}

// CurrentUser returns a copy of the authenticated user, nil when anonymous.
func (s *SessionStore) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.User()
}

// Role returns the authenticated user's role.
func (s *SessionStore) Role() (Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.session.Authenticated() {
		return RoleUnknown, false
	}
	return s.session.user.Role, true
}

// Token returns the opaque bearer string for authenticated transports.
func (s *SessionStore) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.session.Authenticated() {
		return "", false
	}
	return s.session.token, true
}

// Subscription returns a copy of the tenant's subscription record, nil when
// none is held.
func (s *SessionStore) Subscription() *SubscriptionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.subscription == nil {
		return nil
	}
	record := *s.subscription
	return &record
}

// HasActiveSubscription re-derives the effective state on every call; expiry
// is a function of wall-clock time, so the verdict is never cached.
func (s *SessionStore) HasActiveSubscription() bool {
	return s.resolver.IsActive(s.Subscription())
}
