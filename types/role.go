package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role is the authorization level of a user account.
type Role int

const (
	RolePending Role = iota
	RoleWarden
	RoleSubWarden
	RoleInventoryStaff
)

// ErrInvalidRole is returned when a role name is not recognized.
var ErrInvalidRole = errors.New("invalid role")

// Roles lists every role in display order.
var Roles = []Role{RolePending, RoleWarden, RoleSubWarden, RoleInventoryStaff}

func (r Role) String() string {
	switch r {
	case RolePending:
		return "Pending"
	case RoleWarden:
		return "Warden"
	case RoleSubWarden:
		return "Sub-Warden"
	case RoleInventoryStaff:
		return "Inventory Staff"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole converts a display name into a Role. Matching ignores case and
// surrounding whitespace.
func ParseRole(name string) (Role, error) {
	name = strings.TrimSpace(name)
	for _, role := range Roles {
		if strings.EqualFold(role.String(), name) {
			return role, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRole, name)
}

// CanLogin reports whether accounts holding this role may authenticate.
func (r Role) CanLogin() bool {
	switch r {
	case RoleWarden, RoleSubWarden, RoleInventoryStaff:
		return true
	case RolePending:
		return false
	default:
		return false
	}
}

// CanManageUsers reports whether this role may administer other accounts.
func (r Role) CanManageUsers() bool {
	switch r {
	case RoleWarden:
		return true
	case RolePending, RoleSubWarden, RoleInventoryStaff:
		return false
	default:
		return false
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseRole(name)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value stores the role by its display name.
func (r Role) Value() (driver.Value, error) {
	return r.String(), nil
}

func (r *Role) Scan(src any) error {
	var name string
	switch v := src.(type) {
	case string:
		name = v
	case []byte:
		name = string(v)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidRole, src)
	}
	parsed, err := ParseRole(name)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
