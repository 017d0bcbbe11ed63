package authz

import (
	"time"

	"github.com/zerocool-source/apiV2/internal/shared/errors"
	"github.com/zerocool-source/apiV2/internal/shared/types"
	"github.com/zerocool-source/apiV2/internal/workorder/domain"
)

// AssignmentSnapshot is the read snapshot the gate decides over: the
// assignment as fetched plus the owning technician's supervisor at fetch
// time (zero when the technician is unassigned).
type AssignmentSnapshot struct {
	Assignment             *domain.Assignment
	TechnicianSupervisorID types.ID
}

func (s AssignmentSnapshot) view() AssignmentView {
	return AssignmentView{
		TechnicianID:           s.Assignment.TechnicianID,
		TechnicianSupervisorID: s.TechnicianSupervisorID,
	}
}

// AssignmentChange is a mutation payload as the gate sees it: which fields
// it touches plus the values the state machine needs.
type AssignmentChange struct {
	Fields []Field
	// Status is the requested target status when Fields contains
	// FieldStatus. Must already be normalized by the boundary.
	Status domain.Status
	// CanceledReason accompanies a move to cancelled
	CanceledReason *string
}

// Has reports whether the change touches the field
func (c AssignmentChange) Has(f Field) bool {
	for _, cf := range c.Fields {
		if cf == f {
			return true
		}
	}
	return false
}

// Applied is an allow verdict. StatusChange carries the derived timestamp
// fields the storage layer must persist alongside the caller's payload;
// NoOp marks an idempotent re-cancel that must persist nothing at all.
type Applied struct {
	NoOp         bool
	StatusChange *domain.StatusChange
}

// AuthorizeAssignmentMutation is the single decision point for assignment
// writes. Checks run in a fixed order so denials are deterministic:
//
//  1. scope           -> not found (existence is never confirmed)
//  2. write authority -> forbidden
//  3. field matrix    -> forbidden, first violating field in declared order
//  4. state machine   -> invalid transition (the caller has rights but
//     chose an illegal target state)
//
// The function is pure: it performs no I/O and mutates neither snapshot
// nor change.
func AuthorizeAssignmentMutation(id Identity, snap AssignmentSnapshot, change AssignmentChange) (Applied, error) {
	if snap.Assignment == nil {
		return Applied{}, errors.NotFound("assignment", "")
	}
	a := snap.Assignment

	scope := ResolveReadScope(id, ResourceAssignment, nil)
	if !scope.MatchesAssignment(snap.view()) {
		return Applied{}, errors.NotFound("assignment", a.ID.String())
	}

	if err := checkAssignmentWriteAuthority(id, snap); err != nil {
		return Applied{}, err
	}

	if err := CheckFields(id.Role, ResourceAssignment, change.Fields); err != nil {
		return Applied{}, err
	}

	// A cancellation reason never appears on a record that is not
	// cancelled. Supervisors may only write it while cancelling or on an
	// already-cancelled record; repair and admin set fields directly when
	// correcting records and are exempt.
	if change.Has(FieldCanceledReason) && id.Role == RoleSupervisor {
		cancelling := change.Has(FieldStatus) && change.Status == domain.StatusCancelled
		if !cancelling && a.Status != domain.StatusCancelled {
			return Applied{}, errors.Validation("validation failed", map[string]string{
				"canceled_reason": "only valid when the assignment is cancelled",
			})
		}
	}

	if !change.Has(FieldStatus) {
		return Applied{}, nil
	}

	target := change.Status
	current := a.Status

	// Checked ahead of the transition table and the idempotence rule so
	// technicians get the specific message instead of a generic one.
	if id.Role == RoleTech && target == domain.StatusCancelled {
		return Applied{}, errors.Forbidden("technicians cannot cancel assignments")
	}

	// Re-cancelling a cancelled assignment succeeds without touching the
	// record: cancellation is terminal and idempotent.
	if current == domain.StatusCancelled && target == domain.StatusCancelled {
		return Applied{NoOp: true}, nil
	}

	// Same-status writes skip the state machine; other fields in the
	// payload were already validated above.
	if target == current {
		return Applied{}, nil
	}

	if !transitionAllowed(id.Role, current, target) {
		return Applied{}, errors.InvalidTransition(string(current), string(target))
	}

	sc := domain.ApplyStatusChange(a, target, change.CanceledReason, time.Now())
	return Applied{StatusChange: &sc}, nil
}

// checkAssignmentWriteAuthority verifies the caller may write the (visible)
// assignment: technicians their own work, supervisors their team's, repair
// and admin unconditionally. Distinct from scope so a record that becomes
// visible through a wider list still denies as forbidden, not as missing.
func checkAssignmentWriteAuthority(id Identity, snap AssignmentSnapshot) error {
	switch id.Role {
	case RoleAdmin, RoleRepair:
		return nil
	case RoleTech:
		if snap.Assignment.TechnicianID != id.UserID {
			return errors.Forbidden("assignment belongs to another technician")
		}
		return nil
	case RoleSupervisor:
		if snap.TechnicianSupervisorID.IsZero() || snap.TechnicianSupervisorID != id.UserID {
			return errors.Forbidden("assignment belongs to another team")
		}
		return nil
	}
	return errors.Forbidden("unknown role")
}

// transitionAllowed layers role permission over the role-independent
// transition table. Repair and admin bypass the table entirely: their
// status writes are direct field sets, which is how completed records get
// corrected.
func transitionAllowed(role Role, from, to domain.Status) bool {
	switch role {
	case RoleRepair, RoleAdmin:
		return true
	case RoleTech:
		return to != domain.StatusCancelled && domain.CanTransition(from, to)
	case RoleSupervisor:
		return domain.CanTransition(from, to)
	}
	return false
}

// TechnicianChange describes a roster profile mutation as the gate sees
// it. SupervisorID carries the requested value when Fields contains
// FieldSupervisorID; zero releases the technician.
type TechnicianChange struct {
	Fields       []Field
	SupervisorID types.ID
}

// Has reports whether the change touches the field
func (c TechnicianChange) Has(f Field) bool {
	for _, cf := range c.Fields {
		if cf == f {
			return true
		}
	}
	return false
}

// AuthorizeTechnicianMutation gates roster profile writes. Same ordering
// as assignments: scope as not-found, then write authority, then the field
// matrix, then the supervisor claim/release rule.
func AuthorizeTechnicianMutation(id Identity, profile TechnicianView, change TechnicianChange) error {
	scope := ResolveReadScope(id, ResourceTechnician, nil)
	if !scope.MatchesTechnician(profile) {
		return errors.NotFound("technician", profile.UserID.String())
	}

	claiming := change.Has(FieldSupervisorID) &&
		change.SupervisorID == id.UserID && profile.SupervisorID.IsZero()

	switch id.Role {
	case RoleAdmin, RoleRepair:
		// any profile, any field
	case RoleTech:
		if profile.UserID != id.UserID {
			return errors.Forbidden("profile belongs to another technician")
		}
	case RoleSupervisor:
		// Claiming an unassigned technician is the one write a
		// supervisor may make outside their own team.
		if !SameTeam(id, profile) && !claiming {
			return errors.Forbidden("technician belongs to another team")
		}
	default:
		return errors.Forbidden("unknown role")
	}

	if err := CheckFields(id.Role, ResourceTechnician, change.Fields); err != nil {
		return err
	}

	if change.Has(FieldSupervisorID) && id.Role == RoleSupervisor {
		if err := checkClaimRelease(id, profile, change.SupervisorID); err != nil {
			return err
		}
	}

	return nil
}

// checkClaimRelease enforces the supervisor team-membership rule: a
// supervisor may set supervisor_id only to their own id (claim, when the
// technician is unassigned or already theirs) or to null (release, only
// for their own technicians).
func checkClaimRelease(id Identity, profile TechnicianView, target types.ID) error {
	current := profile.SupervisorID

	if target == id.UserID && (current.IsZero() || current == id.UserID) {
		return nil
	}
	if target.IsZero() && current == id.UserID {
		return nil
	}

	return errors.Forbidden("supervisors may only claim unassigned technicians or release their own")
}
