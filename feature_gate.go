package access

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/gate/guard"
)

// FeaturePasswordReset gates the forgot/change-password flows per deployment.
const FeaturePasswordReset = "access.password_reset"

func normalizeFeatureGateError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return err
	}

	return errors.Wrap(err, errors.CategoryAuthz, "Feature gate check failed").
		WithCode(errors.CodeForbidden)
}

func requireFeatureGate(ctx context.Context, featureGate gate.FeatureGate, key string, disabledErr error) error {
	return guard.Require(ctx, featureGate, key,
		guard.WithDisabledError(disabledErr),
		guard.WithErrorMapper(normalizeFeatureGateError),
	)
}

// requirePasswordResetFeature allows the flows when no gate is configured.
func (c *Controller) requirePasswordResetFeature(ctx context.Context) error {
	if c.features == nil {
		return nil
	}
	return requireFeatureGate(ctx, c.features, FeaturePasswordReset, ErrPasswordResetDisabled)
}
