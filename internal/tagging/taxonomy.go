package tagging

import "strings"

const (
	RoleRouter       = "router"
	RoleSwitch       = "switch"
	RoleFirewall     = "firewall"
	RoleAccessPoint  = "access_point"
	RoleWLC          = "wireless_controller"
	RoleLoadBalancer = "load_balancer"
)

var allRoles = []string{
	RoleRouter,
	RoleSwitch,
	RoleFirewall,
	RoleAccessPoint,
	RoleWLC,
	RoleLoadBalancer,
}

func AllRoles() []string {
	out := make([]string, len(allRoles))
	copy(out, allRoles)
	return out
}

func IsValidRole(role string) bool {
	role = NormalizeRole(role)
	for _, r := range allRoles {
		if r == role {
			return true
		}
	}
	return false
}

func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
