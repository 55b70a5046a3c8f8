package batch

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleProcessor Role = "processor"
	RoleQA        Role = "qa"
	RoleAdmin     Role = "admin"
)

// Actor is the identity supplied by the identity provider for one intent.
type Actor struct {
	ID   string
	Role Role
}

func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleProcessor:
		return RoleProcessor, nil
	case RoleQA:
		return RoleQA, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", raw)}
	}
}

// Normalize trims the id and validates both fields.
func (a Actor) Normalize() (Actor, error) {
	id := strings.TrimSpace(a.ID)
	if id == "" {
		return Actor{}, required("actor_id")
	}
	role, err := ParseRole(string(a.Role))
	if err != nil {
		return Actor{}, err
	}
	return Actor{ID: id, Role: role}, nil
}
