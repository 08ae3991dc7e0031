package access_test

import (
	"context"
	"testing"
	"time"

	"github.com/dairyops/go-access"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionRequiresBothParts(t *testing.T) {
	user := &access.User{ID: uuid.New(), Role: access.RoleDairy}

	_, err := access.NewSession(nil, "token-1")
	assert.ErrorIs(t, err, access.ErrSessionInvariant)

	_, err = access.NewSession(user, "")
	assert.ErrorIs(t, err, access.ErrSessionInvariant)

	session, err := access.NewSession(user, "token-1")
	require.NoError(t, err)
	assert.True(t, session.Authenticated())
	assert.Equal(t, "token-1", session.Token())
}

func TestSessionUserReturnsACopy(t *testing.T) {
	user := &access.User{ID: uuid.New(), Name: "Asha", Role: access.RoleDairy}
	session, err := access.NewSession(user, "token-1")
	require.NoError(t, err)

	got := session.User()
	require.NotNil(t, got)
	got.Name = "mutated"

	assert.Equal(t, "Asha", session.User().Name)
}

func TestSessionStringNeverLeaksTheToken(t *testing.T) {
	user := &access.User{ID: uuid.New(), Role: access.RoleFarmer}
	session, err := access.NewSession(user, "secret-bearer-token")
	require.NoError(t, err)

	assert.NotContains(t, session.String(), "secret-bearer-token")
	assert.Equal(t, "session=<anonymous>", access.Session{}.String())
}

func TestSessionStoreStartsAnonymous(t *testing.T) {
	store := access.NewSessionStore()

	assert.False(t, store.IsAuthenticated())
	assert.Nil(t, store.CurrentUser())
	assert.Nil(t, store.Subscription())

	_, ok := store.Role()
	assert.False(t, ok)
	_, ok = store.Token()
	assert.False(t, ok)
	assert.False(t, store.HasActiveSubscription())
}

func TestSessionStoreSubscriptionReturnsACopy(t *testing.T) {
	// Populate through the controller, the store's only writer.
	ended := time.Now().Add(24 * time.Hour)
	client := &stubIdentityClient{
		login: func(_ context.Context, _, _ string) (string, *access.User, error) {
			return "token-1", &access.User{ID: uuid.New(), Role: access.RoleDairy, DairyID: "d-1"}, nil
		},
		subscription: func(_ context.Context, _, _ string) (*access.SubscriptionRecord, error) {
			return &access.SubscriptionRecord{PlanID: "premium", Status: "active", EndDate: &ended}, nil
		},
	}

	controller := access.NewController(client, access.NewMemoryTokenStore())
	require.True(t, controller.Login(context.Background(), "+919876543210", "pw"))

	session := controller.Session()
	record := session.Subscription()
	require.NotNil(t, record)
	record.Status = "mutated"

	assert.Equal(t, "active", session.Subscription().Status)
}

// Expiry is wall-clock-derived on every read: the same stored record answers
// differently as the injected clock crosses the end date, with no write in
// between.
func TestHasActiveSubscriptionReDerivesOnEveryRead(t *testing.T) {
	ended := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	current := ended.Add(-time.Hour)

	store := access.NewSessionStore(access.WithSessionResolver(
		access.NewSubscriptionResolver(access.WithResolverClock(func() time.Time {
			return current
		}))))

	client := &stubIdentityClient{
		login: func(_ context.Context, _, _ string) (string, *access.User, error) {
			return "token-1", &access.User{ID: uuid.New(), Role: access.RoleDairy, DairyID: "d-1"}, nil
		},
		subscription: func(_ context.Context, _, _ string) (*access.SubscriptionRecord, error) {
			return &access.SubscriptionRecord{PlanID: "premium", Status: "active", EndDate: &ended}, nil
		},
	}

	controller := access.NewController(client, access.NewMemoryTokenStore(),
		access.WithControllerSessionStore(store))
	require.True(t, controller.Login(context.Background(), "+919876543210", "pw"))

	assert.True(t, store.HasActiveSubscription())

	current = ended.Add(time.Hour)
	assert.False(t, store.HasActiveSubscription())
}
