package access

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of actor classes the console serves. The identity
// backend encodes roles as small integers (1 admin, 2 dairy, 3 farmer); the
// JSON codec accepts both that wire form and the symbolic names so fixtures
// and older payloads keep working.
type Role uint8

const (
	// RoleUnknown is the zero value; it never passes IsValid.
	RoleUnknown Role = iota
	// RoleAdmin is the platform administrator.
	RoleAdmin
	// RoleDairy is a dairy-business operator, scoped to a tenant.
	RoleDairy
	// RoleFarmer is a supplying farmer, scoped to a tenant.
	RoleFarmer
)

var roleNames = map[Role]string{
	RoleAdmin:  "admin",
	RoleDairy:  "dairy",
	RoleFarmer: "farmer",
}

// IsValid checks that the role is one of the three defined roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDairy, RoleFarmer:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRole safely parses a symbolic or numeric role representation.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin", "1":
		return RoleAdmin, true
	case "dairy", "2":
		return RoleDairy, true
	case "farmer", "3":
		return RoleFarmer, true
	default:
		return RoleUnknown, false
	}
}

// AllRoles returns the defined roles, used by table sanity tests.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleDairy, RoleFarmer}
}

// MarshalJSON emits the backend's numeric wire form.
func (r Role) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(r))), nil
}

// UnmarshalJSON accepts a number or a string, rejecting anything outside the
// closed set so a bad payload fails loudly instead of granting a default role.
func (r *Role) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	parsed, ok := ParseRole(raw)
	if !ok {
		return fmt.Errorf("invalid role: %q", raw)
	}
	*r = parsed
	return nil
}

// User is the read copy of the backend identity record. It is fetched and
// replaced wholesale on login/refresh, never patched client-side.
type User struct {
	ID      uuid.UUID `json:"id,omitempty"`
	Name    string    `json:"name,omitempty"`
	Phone   string    `json:"phone,omitempty"`
	Role    Role      `json:"role,omitempty"`
	DairyID string    `json:"dairy_id,omitempty"`
	Email   string    `json:"email,omitempty"`
}

// SubscriptionRecord is the billing backend's record of a tenant's plan
// purchase. Status is a free-form string owned by billing; EndDate nil means
// no expiry. The record is read-only here, its effective state is re-derived
// on every read by the SubscriptionResolver.
type SubscriptionRecord struct {
	PlanID    string     `json:"plan_id,omitempty"`
	Status    string     `json:"status,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// IsZero reports whether the record carries no usable fields, which is how a
// missing or malformed billing payload presents after decoding.
func (r *SubscriptionRecord) IsZero() bool {
	if r == nil {
		return true
	}
	return r.PlanID == "" && r.Status == "" && r.StartDate == nil && r.EndDate == nil
}

// DecodeSubscriptionRecord parses a billing payload into a typed record. An
// empty or content-free body yields (nil, nil): the caller sees "no record"
// rather than a resolver crash.
func DecodeSubscriptionRecord(data []byte) (*SubscriptionRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}

	record := &SubscriptionRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, err
	}

	if record.IsZero() {
		return nil, nil
	}

	return record, nil
}

// Permission identifies one CRUD capability.
type Permission uint8

const (
	PermissionView Permission = iota + 1
	PermissionCreate
	PermissionEdit
	PermissionDelete
)

func (p Permission) String() string {
	switch p {
	case PermissionView:
		return "view"
	case PermissionCreate:
		return "create"
	case PermissionEdit:
		return "edit"
	case PermissionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ParsePermission maps the string form used by template helpers and route
// configuration to a Permission.
func ParsePermission(s string) (Permission, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "view", "read":
		return PermissionView, true
	case "create":
		return PermissionCreate, true
	case "edit", "update":
		return PermissionEdit, true
	case "delete":
		return PermissionDelete, true
	default:
		return 0, false
	}
}

// PermissionSet is the CRUD capability grant attached to a role or route.
type PermissionSet struct {
	CanView   bool `json:"can_view"`
	CanCreate bool `json:"can_create"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// Has reports whether the set grants the given permission. Unknown
// permissions are never granted.
func (ps PermissionSet) Has(p Permission) bool {
	switch p {
	case PermissionView:
		return ps.CanView
	case PermissionCreate:
		return ps.CanCreate
	case PermissionEdit:
		return ps.CanEdit
	case PermissionDelete:
		return ps.CanDelete
	default:
		return false
	}
}
