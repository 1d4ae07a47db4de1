package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Role is the site-wide role of a user. Roles form a strict order:
// NONE < EDITOR < ADMINISTRATOR. Permission checks compare rank,
// never identity.
type Role int

const (
	RoleNone Role = iota
	RoleEditor
	RoleAdministrator
)

var roleNames = map[Role]string{
	RoleNone:          "NONE",
	RoleEditor:        "EDITOR",
	RoleAdministrator: "ADMINISTRATOR",
}

// ParseRole converts a stored role name back into a Role.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return RoleNone, fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// MarshalJSON renders the role as its name, matching the persisted form.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts a role name.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value implements driver.Valuer so roles persist by name.
func (r Role) Value() (driver.Value, error) {
	return r.String(), nil
}

// Scan implements sql.Scanner.
func (r *Role) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseRole(v)
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	case []byte:
		return r.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Role", src)
	}
}
