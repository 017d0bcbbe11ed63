// Package authz is the authorization core: the scope resolver that bounds
// which records a caller may see, the field matrix that bounds which fields
// a role may write, and the gate that composes both with the assignment
// state machine into a single decision per mutation.
//
// Everything in this package is pure. It reads the snapshot it is handed
// and the caller's identity, performs no I/O, and retains nothing across
// calls, so it is safe under any amount of request concurrency.
package authz

import (
	"fmt"

	"github.com/zerocool-source/apiV2/internal/shared/types"
)

// Role is the closed set of platform roles. Adding a role means updating
// the exhaustive switches in this package, which the compiler and tests
// will point at; there is no string comparison to audit.
type Role string

const (
	RoleTech       Role = "tech"
	RoleSupervisor Role = "supervisor"
	RoleRepair     Role = "repair"
	RoleAdmin      Role = "admin"
)

// ParseRole validates a role string
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleTech, RoleSupervisor, RoleRepair, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("invalid role: %q", s)
}

// Identity is the verified caller of a request: who they are and what role
// they hold. It is derived once per request from the token claims and never
// persisted.
type Identity struct {
	UserID types.ID
	Role   Role
}

// ResourceType names the resource families the core scopes and gates
type ResourceType string

const (
	ResourceAssignment ResourceType = "assignment"
	ResourceTechnician ResourceType = "technician"
	ResourceProperty   ResourceType = "property"
)
