package domain

import "strings"

// Role identifies what a dashboard user may see and do.
type Role string

const (
	// RoleUnknown is the zero value; guests and unrecognised role strings resolve to it.
	RoleUnknown       Role = ""
	RoleDealerStaff   Role = "DEALER_STAFF"
	RoleDealerManager Role = "DEALER_MANAGER"
	RoleEVMStaff      Role = "EVM_STAFF"
	RoleEVMManager    Role = "EVM_MANAGER"
	RoleAdmin         Role = "ADMIN"
)

var knownRoles = []Role{
	RoleDealerStaff,
	RoleDealerManager,
	RoleEVMStaff,
	RoleEVMManager,
	RoleAdmin,
}

// KnownRoles returns every recognised role in a stable order.
func KnownRoles() []Role {
	out := make([]Role, len(knownRoles))
	copy(out, knownRoles)
	return out
}

// String implements fmt.Stringer.
func (r Role) String() string {
	if r == RoleUnknown {
		return "UNKNOWN"
	}
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range knownRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsDealerScoped reports whether users with this role belong to exactly one dealer.
func (r Role) IsDealerScoped() bool {
	return r == RoleDealerStaff || r == RoleDealerManager
}

// IsEVM reports whether the role belongs to the manufacturer side (including ADMIN).
func (r Role) IsEVM() bool {
	return r == RoleEVMStaff || r == RoleEVMManager || r == RoleAdmin
}

// ParseRole normalises a role identifier arriving in either historical format
// ("dealer-staff", "DEALER_STAFF", "Dealer Staff") into the canonical Role.
// The second return value is false when the input names no known role.
func ParseRole(raw string) (Role, bool) {
	key := normalizeRoleKey(raw)
	if key == "" {
		return RoleUnknown, false
	}
	for _, candidate := range knownRoles {
		if normalizeRoleKey(string(candidate)) == key {
			return candidate, true
		}
	}
	return RoleUnknown, false
}

func normalizeRoleKey(raw string) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(strings.TrimSpace(raw)) {
		switch {
		case c == '-' || c == '_' || c == ' ':
			continue
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// MarshalText keeps the canonical spelling on the wire.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r), nil
}

// UnmarshalText accepts either historical spelling. Unknown values decode to RoleUnknown
// instead of failing, so a stale session never breaks decoding.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, _ := ParseRole(string(text))
	*r = parsed
	return nil
}
