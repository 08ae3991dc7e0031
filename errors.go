package access

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeTokenInvalid         = "TOKEN_INVALID"
	textCodeCredentialsRejected  = "CREDENTIALS_REJECTED"
	textCodeBackendUnavailable   = "BACKEND_UNAVAILABLE"
	textCodePasswordResetClosed  = "PASSWORD_RESET_DISABLED"
	textCodeInvalidPhaseChange   = "INVALID_SESSION_PHASE_CHANGE"
	textCodeSessionInvariantRisk = "SESSION_INVARIANT_VIOLATION"
)

// ErrNoPersistedToken is returned by token stores when the durable key is
// absent; callers treat it as "unauthenticated", not as a failure.
var ErrNoPersistedToken = errors.New("no persisted token")

// ErrTokenInvalid is returned when the backend reports the bearer token is no
// longer valid; the controller escalates it to an unconditional logout.
var ErrTokenInvalid = goerrors.New("bearer token rejected by backend", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrCredentialsRejected is returned on a bad phone/password pair.
var ErrCredentialsRejected = goerrors.New("credentials rejected", goerrors.CategoryAuth).
	WithTextCode(textCodeCredentialsRejected).
	WithCode(goerrors.CodeUnauthorized)

// ErrBackendUnavailable wraps transport failures talking to the identity or
// billing backend.
var ErrBackendUnavailable = goerrors.New("backend unavailable", goerrors.CategoryOperation).
	WithTextCode(textCodeBackendUnavailable).
	WithCode(goerrors.CodeInternal)

// ErrPasswordResetDisabled is returned when the deployment gates the password
// reset flows off.
var ErrPasswordResetDisabled = goerrors.New("password reset is disabled", goerrors.CategoryAuthz).
	WithTextCode(textCodePasswordResetClosed).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidPhaseChange is returned for session lifecycle transitions outside
// the allowed graph.
var ErrInvalidPhaseChange = goerrors.New("invalid session phase change", goerrors.CategoryConflict).
	WithTextCode(textCodeInvalidPhaseChange).
	WithCode(goerrors.CodeConflict)

// ErrSessionInvariant is returned when a session would pair a token with no
// user or a user with no token.
var ErrSessionInvariant = goerrors.New("session token and user must be set together", goerrors.CategoryValidation).
	WithTextCode(textCodeSessionInvariantRisk).
	WithCode(goerrors.CodeBadRequest)

// IsTokenInvalidError will check whether an error means the bearer token is
// dead and the session must be wiped.
func IsTokenInvalidError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCodeTokenInvalid
	}

	return strings.Contains(err.Error(), "token rejected") ||
		strings.Contains(err.Error(), "token is invalid")
}

// IsCredentialError will check for a rejected phone/password pair.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCodeCredentialsRejected
	}

	return strings.Contains(err.Error(), "credentials rejected")
}
