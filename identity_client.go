package access

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// Backend endpoint paths. The registration spelling is the backend's, kept
// verbatim so the client stays wire-compatible.
const (
	endpointLogin          = "auth/login"
	endpointRegister       = "auth/registeration"
	endpointRefresh        = "auth/refresh"
	endpointLogout         = "auth/logout"
	endpointForgotPassword = "auth/forgot-password"
	endpointChangePassword = "auth/change-password"
	endpointSubscription   = "subscription/active"
)

// NormalizePhone parses the login handle into E.164 form for the given
// default region.
func NormalizePhone(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), region)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "could not parse phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"region": region})
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// LoginPayload carries the phone/password credential pair.
type LoginPayload struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (p LoginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Phone, validation.Required, validation.Length(8, 17)),
		validation.Field(&p.Password, validation.Required),
	)
}

// RegisterPayload is the signup profile sent to the backend.
type RegisterPayload struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	ReferralCode    string `json:"referralCode,omitempty"`
}

// Validate will run validation rules
func (p RegisterPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Phone, validation.Required, validation.Length(8, 17)),
		validation.Field(&p.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(
			&p.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(p.Password)),
		),
	)
}

// ChangePasswordPayload carries a password change for the account's phone.
type ChangePasswordPayload struct {
	Phone           string `json:"phone"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate will run validation rules
func (p ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Phone, validation.Required, validation.Length(8, 17)),
		validation.Field(&p.NewPassword, validation.Required, validation.Length(6, 100)),
		validation.Field(
			&p.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(p.NewPassword)),
		),
	)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

type authEnvelope struct {
	AccessToken string `json:"accessToken"`
	User        *User  `json:"user"`
}

// HTTPIdentityClient is the JSON/HTTP implementation of IdentityClient. The
// bearer token travels as `Authorization: Bearer <token>` and is otherwise
// opaque to this client.
type HTTPIdentityClient struct {
	baseURL     string
	phoneRegion string
	httpClient  *http.Client
	logger      Logger
}

var _ IdentityClient = (*HTTPIdentityClient)(nil)

// HTTPIdentityClientOption customizes client construction.
type HTTPIdentityClientOption func(*HTTPIdentityClient)

// WithHTTPClient overrides the underlying http.Client (transport timeouts,
// test servers).
func WithHTTPClient(client *http.Client) HTTPIdentityClientOption {
	return func(c *HTTPIdentityClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithClientLogger overrides the client logger.
func WithClientLogger(logger Logger) HTTPIdentityClientOption {
	return func(c *HTTPIdentityClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewHTTPIdentityClient returns a client for the configured backend base URL.
func NewHTTPIdentityClient(cfg Config, opts ...HTTPIdentityClientOption) *HTTPIdentityClient {
	c := &HTTPIdentityClient{
		baseURL:     strings.TrimRight(cfg.GetBaseURL(), "/"),
		phoneRegion: cfg.GetPhoneRegion(),
		httpClient:  &http.Client{Timeout: cfg.GetHTTPTimeout()},
		logger:      defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *HTTPIdentityClient) newRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, &buf)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

// do executes the request and decodes a JSON body into out when provided.
// unauthorizedErr is what a 401/403 means for this particular call: bad
// credentials on login, a dead token on authenticated calls.
func (c *HTTPIdentityClient) do(req *http.Request, out any, unauthorizedErr error) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerrors.Wrap(err, ErrBackendUnavailable.Category, ErrBackendUnavailable.Message).
			WithTextCode(ErrBackendUnavailable.TextCode)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return unauthorizedErr
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		io.Copy(io.Discard, resp.Body)
		return goerrors.New(
			fmt.Sprintf("unexpected backend status: %s", resp.Status),
			goerrors.CategoryOperation,
		).WithMetadata(map[string]any{"path": req.URL.Path})
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to decode backend response")
	}

	return nil
}

func (c *HTTPIdentityClient) Login(ctx context.Context, phone, password string) (string, *User, error) {
	payload := LoginPayload{Phone: phone, Password: password}
	if err := payload.Validate(); err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid login payload")
	}

	normalized, err := NormalizePhone(phone, c.phoneRegion)
	if err != nil {
		return "", nil, err
	}
	payload.Phone = normalized

	req, err := c.newRequest(ctx, http.MethodPost, endpointLogin, "", payload)
	if err != nil {
		return "", nil, err
	}

	var envelope authEnvelope
	if err := c.do(req, &envelope, ErrCredentialsRejected); err != nil {
		return "", nil, err
	}

	if envelope.AccessToken == "" || envelope.User == nil {
		return "", nil, goerrors.New("login response missing token or user", goerrors.CategoryOperation)
	}

	return envelope.AccessToken, envelope.User, nil
}

func (c *HTTPIdentityClient) Register(ctx context.Context, payload RegisterPayload) (string, *User, error) {
	if err := payload.Validate(); err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload")
	}

	normalized, err := NormalizePhone(payload.Phone, c.phoneRegion)
	if err != nil {
		return "", nil, err
	}
	payload.Phone = normalized

	req, err := c.newRequest(ctx, http.MethodPost, endpointRegister, "", payload)
	if err != nil {
		return "", nil, err
	}

	// The backend may or may not auto-issue a token on signup; an empty
	// envelope is a valid outcome and leaves the caller unauthenticated.
	var envelope authEnvelope
	if err := c.do(req, &envelope, ErrCredentialsRejected); err != nil {
		return "", nil, err
	}

	return envelope.AccessToken, envelope.User, nil
}

func (c *HTTPIdentityClient) Refresh(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrNoPersistedToken
	}

	req, err := c.newRequest(ctx, http.MethodPost, endpointRefresh, token, nil)
	if err != nil {
		return nil, err
	}

	var envelope authEnvelope
	if err := c.do(req, &envelope, ErrTokenInvalid); err != nil {
		return nil, err
	}

	if envelope.User == nil {
		return nil, goerrors.New("refresh response missing user", goerrors.CategoryOperation)
	}

	return envelope.User, nil
}

// Logout is advisory only; the session is correct without it.
func (c *HTTPIdentityClient) Logout(ctx context.Context, token string) error {
	req, err := c.newRequest(ctx, http.MethodPost, endpointLogout, token, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil, ErrTokenInvalid)
}

func (c *HTTPIdentityClient) ForgotPassword(ctx context.Context, phone string) error {
	normalized, err := NormalizePhone(phone, c.phoneRegion)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, endpointForgotPassword, "", map[string]string{
		"phone": normalized,
	})
	if err != nil {
		return err
	}

	return c.do(req, nil, ErrCredentialsRejected)
}

func (c *HTTPIdentityClient) ChangePassword(ctx context.Context, token string, payload ChangePasswordPayload) error {
	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid change password payload")
	}

	normalized, err := NormalizePhone(payload.Phone, c.phoneRegion)
	if err != nil {
		return err
	}
	payload.Phone = normalized

	req, err := c.newRequest(ctx, http.MethodPost, endpointChangePassword, token, payload)
	if err != nil {
		return err
	}

	return c.do(req, nil, ErrTokenInvalid)
}

func (c *HTTPIdentityClient) ActiveSubscription(ctx context.Context, token, dairyID string) (*SubscriptionRecord, error) {
	path := endpointSubscription
	if dairyID != "" {
		path += "?dairy_id=" + url.QueryEscape(dairyID)
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, ErrBackendUnavailable.Category, ErrBackendUnavailable.Message).
			WithTextCode(ErrBackendUnavailable.TextCode)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return nil, ErrTokenInvalid
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		io.Copy(io.Discard, resp.Body)
		return nil, goerrors.New(
			fmt.Sprintf("unexpected backend status: %s", resp.Status),
			goerrors.CategoryOperation,
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read subscription response")
	}

	record, err := DecodeSubscriptionRecord(body)
	if err != nil {
		// A malformed billing payload maps to "no record", never a crash.
		c.logger.Warn("malformed subscription payload, treating as none: %v", err)
		return nil, nil
	}

	return record, nil
}
