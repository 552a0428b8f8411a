package auth

// Role is the access tier carried in session claims. Tiers are ordered:
// readonly < station < admin. A station user outranks readonly for route
// gating, but its writes are further confined to its own station by
// Authorize once the target resource is resolved.
type Role string

const (
	// RoleReadonly may read every station and write nothing.
	RoleReadonly Role = "readonly"
	// RoleStation may write inside the station named in its claims.
	RoleStation Role = "station"
	// RoleAdmin may write everywhere and owns the /api/admin routes.
	RoleAdmin Role = "admin"
)

// roleRanks orders the tiers; unknown roles rank below readonly.
var roleRanks = map[Role]int{
	RoleReadonly: 1,
	RoleStation:  2,
	RoleAdmin:    3,
}

// NormalizeRole accepts only the three known role names, verbatim.
func NormalizeRole(value string) (Role, bool) {
	role := Role(value)
	if _, ok := roleRanks[role]; !ok {
		return "", false
	}
	return role, true
}

// RoleAtLeast reports whether role ranks at or above required. An unknown
// role never satisfies a known requirement.
func RoleAtLeast(role Role, required Role) bool {
	return roleRanks[role] >= roleRanks[required] && roleRanks[role] > 0
}
