package access_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dairyops/go-access"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintBackendToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newIdentityClient(t *testing.T, handler http.Handler) *access.HTTPIdentityClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return access.NewHTTPIdentityClient(access.SimpleConfig{
		BaseURL:     server.URL,
		PhoneRegion: "IN",
	})
}

func TestNormalizePhone(t *testing.T) {
	normalized, err := access.NormalizePhone("98765 43210", "IN")
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", normalized)

	normalized, err = access.NormalizePhone("+919876543210", "IN")
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", normalized)

	_, err = access.NormalizePhone("12", "IN")
	assert.Error(t, err)
}

func TestLoginSuccess(t *testing.T) {
	userID := uuid.New()
	token := mintBackendToken(t, userID)

	client := newIdentityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)

		var payload access.LoginPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		// The client normalizes the login handle before it hits the wire.
		assert.Equal(t, "+919876543210", payload.Phone)

		json.NewEncoder(w).Encode(map[string]any{
			"accessToken": token,
			"user": map[string]any{
				"id":       userID.String(),
				"name":     "Asha",
				"phone":    payload.Phone,
				"role":     2,
				"dairy_id": "dairy-17",
			},
		})
	}))

	gotToken, user, err := client.Login(context.Background(), "98765 43210", "secret")
	require.NoError(t, err)
	assert.Equal(t, token, gotToken)
	require.NotNil(t, user)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, access.RoleDairy, user.Role)
}

func TestLoginRejectedCredentials(t *testing.T) {
	client := newIdentityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, _, err := client.Login(context.Background(), "9876543210", "wrong")
	require.Error(t, err)
	assert.True(t, access.IsCredentialError(err))
	assert.False(t, access.IsTokenInvalidError(err))
}

func TestLoginValidatesPayloadBeforeTheWire(t *testing.T) {
	called := false
	client := newIdentityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, _, err := client.Login(context.Background(), "", "secret")
	assert.Error(t, err)

	_, _, err = client.Login(context.Background(), "9876543210", "")
	assert.Error(t, err)

	assert.False(t, called)
}

func TestLoginMissingTokenInResponse(t *testing.T) {
	client := newIdentityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"user": map[string]any{"role": 2}})
	}))

	_, _, err := client.Login(context.Background(), "9876543210", "secret")
	assert.Error(t, err)
}

func TestRegisterHitsTheBackendSpelling(t *testing.T) {
	var gotPath string
	client := newIdentityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))

	payload := access.RegisterPayload{
		Name:            "Asha",
		Phone:           "9876543210",
		Password:        "secret99",
		ConfirmPassword: "secret99",
	}

	token, user, err := client.Register(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "/auth/registeration", gotPath)

	// No auto-issued token: the caller stays unauthenticated.
	assert.Empty(t, token)
	assert.Nil(t, user)
}

func TestRegisterPayloadValidation(t *testing.T) {
	payload := access.RegisterPayload{
		Name:            "Asha",
		Phone:           "9876543210",
		Password:        "secret99",
		ConfirmPassword: "different",
	}
	assert.Error(t, payload.Validate())

	payload.ConfirmPassword = "secret99"
	assert.NoError(t, payload.Validate())

	payload.Password = "tiny"
	payload.ConfirmPassword = "tiny"
	assert.Error(t, payload.Validate())
}

func TestRefreshSendsBearerAndDecodesUser(t *testing.T) {
	userID := uuid.New()
	token := mintBackendToken(t, userID)

	client := newIdentityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh", r.URL.Path)
		require.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{
				"id":   userID.String(),
				"role": 3,
			},
		})
	}))

	user, err := client.Refresh(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, access.RoleFarmer, user.Role)
}

func TestRefreshDeadTokenMapsToTokenInvalid(t *testing.T) {
	client := newIdentityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Refresh(context.Background(), "expired-token")
	require.Error(t, err)
	assert.True(t, access.IsTokenInvalidError(err))
}

func TestRefreshWithoutTokenShortCircuits(t *testing.T) {
	called := false
	client := newIdentityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := client.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, access.ErrNoPersistedToken)
	assert.False(t, called)
}

func TestActiveSubscriptionDecodesRecord(t *testing.T) {
	client := newIdentityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/subscription/active", r.URL.Path)
		require.Equal(t, "dairy-17", r.URL.Query().Get("dairy_id"))

		json.NewEncoder(w).Encode(map[string]any{
			"plan_id":  "premium-yearly",
			"status":   "active",
			"end_date": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		})
	}))

	record, err := client.ActiveSubscription(context.Background(), "token-1", "dairy-17")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "premium-yearly", record.PlanID)
	assert.Equal(t, "active", record.Status)
}

func TestActiveSubscriptionAbsentRecord(t *testing.T) {
	client := newIdentityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	record, err := client.ActiveSubscription(context.Background(), "token-1", "dairy-17")
	assert.NoError(t, err)
	assert.Nil(t, record)
}

func TestActiveSubscriptionMalformedPayloadDegradesToNone(t *testing.T) {
	client := newIdentityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"plan_id": 42, "status": ["not", "a", "string"]}`))
	}))

	record, err := client.ActiveSubscription(context.Background(), "token-1", "dairy-17")
	assert.NoError(t, err)
	assert.Nil(t, record)
}

func TestActiveSubscriptionDeadToken(t *testing.T) {
	client := newIdentityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := client.ActiveSubscription(context.Background(), "dead", "dairy-17")
	require.Error(t, err)
	assert.True(t, access.IsTokenInvalidError(err))
}

func TestChangePasswordEscalatesDeadToken(t *testing.T) {
	client := newIdentityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/change-password", r.URL.Path)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	err := client.ChangePassword(context.Background(), "dead", access.ChangePasswordPayload{
		Phone:           "9876543210",
		NewPassword:     "secret99",
		ConfirmPassword: "secret99",
	})
	require.Error(t, err)
	assert.True(t, access.IsTokenInvalidError(err))
}

func TestForgotPasswordNormalizesPhone(t *testing.T) {
	var gotPhone string
	client := newIdentityClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotPhone = body["phone"]
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.ForgotPassword(context.Background(), "98765 43210"))
	assert.Equal(t, "+919876543210", gotPhone)
}

func TestBackendDownMapsToBackendUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := access.NewHTTPIdentityClient(access.SimpleConfig{
		BaseURL:     server.URL,
		PhoneRegion: "IN",
		HTTPTimeout: time.Second,
	})

	_, err := client.Refresh(context.Background(), "token-1")
	require.Error(t, err)
	assert.False(t, access.IsTokenInvalidError(err))
}
