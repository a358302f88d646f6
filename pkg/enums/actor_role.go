package enums

import "fmt"

// ActorRole labels an authenticated caller of the API.
type ActorRole string

const (
	ActorRoleAdmin  ActorRole = "admin"
	ActorRoleClient ActorRole = "client"
)

var validActorRoles = []ActorRole{
	ActorRoleAdmin,
	ActorRoleClient,
}

// IsValid reports whether the value matches the canonical actor role enum.
func (a ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActorRole converts the raw string to ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
