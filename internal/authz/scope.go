package authz

import (
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

// Scope is the visibility bound for one identity over one resource family.
// Repositories translate a scope into SQL filters for listing; the gate
// evaluates it in memory against a fetched snapshot for by-id access.
//
// A record excluded by scope is reported as not found, never as forbidden:
// a caller who cannot see a record must not learn that it exists. Forbidden
// is reserved for records the caller can see but may not write.
type Scope struct {
	Resource ResourceType

	// All grants unrestricted visibility
	All bool
	// None yields the empty set. A supervisor with no region and no team
	// resolves to an empty scope, not an error.
	None bool

	// OwnerID limits to records owned by this user: assignments by
	// technician, profiles by user, properties through the owner's
	// assignments.
	OwnerID types.ID
	// TeamOf limits to records belonging to this supervisor's team:
	// profiles by supervisor_id, assignments through the owning
	// technician's supervisor, properties through team assignments.
	TeamOf types.ID
	// Region widens a property scope to everything in the supervisor's
	// region. Combined with TeamOf as a union, matching the source
	// behavior.
	Region types.Region
	// IncludeUnassigned widens a supervisor's technician scope to
	// profiles with no supervisor. Without it the claim grant in the
	// field matrix would be unreachable: a supervisor could never see
	// the unassigned technicians they are allowed to claim.
	IncludeUnassigned bool
}

// TechnicianView is the slice of a roster profile the authorization rules
// read: whose profile it is and which team it belongs to.
type TechnicianView struct {
	UserID       types.ID
	SupervisorID types.ID // zero when unassigned
	Region       types.Region
	Active       bool
}

// AssignmentView is the slice of an assignment snapshot scope checks read.
// TechnicianSupervisorID is the owning technician's supervisor at fetch
// time, zero when the technician is unassigned.
type AssignmentView struct {
	TechnicianID           types.ID
	TechnicianSupervisorID types.ID
}

// ResolveReadScope computes the visibility bound for an identity over a
// resource family. For supervisors resolving property scope, self carries
// the supervisor's own roster profile so the region half of the union can
// be resolved; nil is treated as a supervisor without a region.
func ResolveReadScope(id Identity, resource ResourceType, self *TechnicianView) Scope {
	s := Scope{Resource: resource}

	switch id.Role {
	case RoleAdmin:
		s.All = true

	case RoleTech:
		// Own work, own profile, properties on own route
		s.OwnerID = id.UserID

	case RoleRepair:
		// Repair floats across teams: full roster visibility, but work
		// and property scope follow its own assigned jobs like a tech.
		if resource == ResourceTechnician {
			s.All = true
		} else {
			s.OwnerID = id.UserID
		}

	case RoleSupervisor:
		s.TeamOf = id.UserID
		switch resource {
		case ResourceProperty:
			if self != nil {
				s.Region = self.Region
			}
		case ResourceTechnician:
			s.IncludeUnassigned = true
		}

	default:
		s.None = true
	}

	return s
}

// MatchesAssignment reports whether the scope admits the assignment
func (s Scope) MatchesAssignment(v AssignmentView) bool {
	switch {
	case s.None:
		return false
	case s.All:
		return true
	case !s.OwnerID.IsZero():
		return v.TechnicianID == s.OwnerID
	case !s.TeamOf.IsZero():
		return !v.TechnicianSupervisorID.IsZero() && v.TechnicianSupervisorID == s.TeamOf
	}
	return false
}

// MatchesTechnician reports whether the scope admits the profile
func (s Scope) MatchesTechnician(v TechnicianView) bool {
	switch {
	case s.None:
		return false
	case s.All:
		return true
	case !s.OwnerID.IsZero():
		return v.UserID == s.OwnerID
	case !s.TeamOf.IsZero():
		if v.SupervisorID.IsZero() {
			return s.IncludeUnassigned
		}
		return v.SupervisorID == s.TeamOf
	}
	return false
}

// SameTeam reports whether the identity holds team authority over the
// profile: admins and repair over everyone, supervisors over their own
// team. Technicians hold team authority over no one, themselves included.
func SameTeam(id Identity, v TechnicianView) bool {
	switch id.Role {
	case RoleAdmin, RoleRepair:
		return true
	case RoleSupervisor:
		return !v.SupervisorID.IsZero() && v.SupervisorID == id.UserID
	case RoleTech:
		return false
	}
	return false
}
