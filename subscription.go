package access

import (
	"strings"
	"time"
)

// EffectiveSubscriptionState is the client-side normalization of a billing
// record against the current time. It is derived, never stored.
type EffectiveSubscriptionState string

const (
	// SubscriptionNone means no usable record exists.
	SubscriptionNone EffectiveSubscriptionState = "none"
	// SubscriptionActive means the record is active and not past its end date.
	SubscriptionActive EffectiveSubscriptionState = "active"
	// SubscriptionExpired means billing still says active but the end date
	// has passed; the transition happens purely by wall-clock time.
	SubscriptionExpired EffectiveSubscriptionState = "expired"
	// SubscriptionInactive is the fallback for records with an empty status.
	SubscriptionInactive EffectiveSubscriptionState = "inactive"
)

// SubscriptionResolver derives the effective state of a subscription record.
// Resolve is pure in (status, endDate, now) and is re-evaluated on every call:
// a record silently moves from active to expired without any write occurring,
// so the result must never be cached.
type SubscriptionResolver struct {
	now func() time.Time
}

// ResolverOption customizes resolver construction.
type ResolverOption func(*SubscriptionResolver)

// WithResolverClock injects a custom clock (useful for tests).
func WithResolverClock(clock func() time.Time) ResolverOption {
	return func(r *SubscriptionResolver) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewSubscriptionResolver returns a resolver backed by the wall clock unless
// overridden.
func NewSubscriptionResolver(opts ...ResolverOption) *SubscriptionResolver {
	r := &SubscriptionResolver{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve normalizes the record:
//   - no record (nil or content-free) -> none
//   - status "active" past the end date -> expired
//   - status "active" otherwise -> active
//   - empty status -> inactive
//   - anything else -> the raw status, verbatim
//
// A record whose end date equals the current instant is already expired;
// active requires now to be strictly before the end date.
func (r *SubscriptionResolver) Resolve(record *SubscriptionRecord) EffectiveSubscriptionState {
	if record.IsZero() {
		return SubscriptionNone
	}

	status := strings.TrimSpace(record.Status)
	if strings.EqualFold(status, string(SubscriptionActive)) {
		if record.EndDate != nil && !r.now().Before(*record.EndDate) {
			return SubscriptionExpired
		}
		return SubscriptionActive
	}

	if status == "" {
		return SubscriptionInactive
	}

	return EffectiveSubscriptionState(status)
}

// IsActive reports whether the record resolves to active right now.
func (r *SubscriptionResolver) IsActive(record *SubscriptionRecord) bool {
	return r.Resolve(record) == SubscriptionActive
}
