package authz

import (
	"testing"
	"time"

	"github.com/zerocool-source/apiV2/internal/shared/errors"
	"github.com/zerocool-source/apiV2/internal/shared/types"
	"github.com/zerocool-source/apiV2/internal/workorder/domain"
)

func pendingAssignment(techID types.ID) *domain.Assignment {
	now := time.Now()
	return &domain.Assignment{
		ID:            types.NewID(),
		PropertyID:    types.NewID(),
		TechnicianID:  techID,
		Status:        domain.StatusPending,
		Priority:      domain.PriorityMed,
		ScheduledDate: now.AddDate(0, 0, 1),
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func statusChange(to domain.Status) AssignmentChange {
	return AssignmentChange{Fields: []Field{FieldStatus}, Status: to}
}

func assertCode(t *testing.T, err error, code string) *errors.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got allow", code)
	}
	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("expected AppError, got %T (%v)", err, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
	return appErr
}

// Scenario: a tech starts their own pending assignment.
func TestTechStartsOwnAssignment(t *testing.T) {
	techID := types.NewID()
	tech := Identity{UserID: techID, Role: RoleTech}
	snap := AssignmentSnapshot{Assignment: pendingAssignment(techID)}

	applied, err := AuthorizeAssignmentMutation(tech, snap, statusChange(domain.StatusInProgress))
	if err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
	if applied.NoOp {
		t.Error("a real transition should not be a no-op")
	}
	if applied.StatusChange == nil || applied.StatusChange.Status != domain.StatusInProgress {
		t.Fatalf("expected in_progress status change, got %+v", applied.StatusChange)
	}
	if applied.StatusChange.CompletedAt != nil || applied.StatusChange.CanceledAt != nil {
		t.Error("starting work should not stamp completion or cancellation timestamps")
	}
}

// Scenario: a supervisor cannot touch another team's assignment, and must
// not even learn it exists.
func TestForeignTeamAssignmentIsInvisible(t *testing.T) {
	s1 := Identity{UserID: types.NewID(), Role: RoleSupervisor}
	s2 := types.NewID()
	snap := AssignmentSnapshot{
		Assignment:             pendingAssignment(types.NewID()),
		TechnicianSupervisorID: s2,
	}

	for _, change := range []AssignmentChange{
		statusChange(domain.StatusCancelled),
		{Fields: []Field{FieldNotes}},
		{Fields: []Field{FieldPriority}},
	} {
		_, err := AuthorizeAssignmentMutation(s1, snap, change)
		assertCode(t, err, "NOT_FOUND")
	}
}

// Scenario: a supervisor cancels an own-team assignment with a reason.
func TestSupervisorCancelsOwnTeamAssignment(t *testing.T) {
	supID := types.NewID()
	sup := Identity{UserID: supID, Role: RoleSupervisor}
	snap := AssignmentSnapshot{
		Assignment:             pendingAssignment(types.NewID()),
		TechnicianSupervisorID: supID,
	}

	reason := "rescheduled"
	change := AssignmentChange{
		Fields:         []Field{FieldStatus, FieldCanceledReason},
		Status:         domain.StatusCancelled,
		CanceledReason: &reason,
	}

	before := time.Now()
	applied, err := AuthorizeAssignmentMutation(sup, snap, change)
	if err != nil {
		t.Fatalf("expected allow, got %v", err)
	}

	sc := applied.StatusChange
	if sc == nil || sc.Status != domain.StatusCancelled {
		t.Fatalf("expected cancellation, got %+v", sc)
	}
	if sc.CanceledAt == nil || sc.CanceledAt.Before(before) {
		t.Error("canceled_at should be stamped to now")
	}
	if sc.CanceledReason == nil || *sc.CanceledReason != "rescheduled" {
		t.Error("canceled_reason should carry the supplied reason")
	}
	if !sc.ClearCompleted {
		t.Error("cancellation should clear completed_at")
	}
}

// Scenario: a tech may never cancel, even their own work, and the denial
// carries the tech-specific message rather than a transition error.
func TestTechCannotCancel(t *testing.T) {
	techID := types.NewID()
	tech := Identity{UserID: techID, Role: RoleTech}

	for _, from := range []domain.Status{domain.StatusPending, domain.StatusInProgress, domain.StatusCancelled} {
		a := pendingAssignment(techID)
		a.Status = from
		snap := AssignmentSnapshot{Assignment: a}

		_, err := AuthorizeAssignmentMutation(tech, snap, statusChange(domain.StatusCancelled))
		appErr := assertCode(t, err, "FORBIDDEN")
		if appErr.Message != "technicians cannot cancel assignments" {
			t.Errorf("from %s: expected tech-specific message, got %q", from, appErr.Message)
		}
		if errors.Is(err, errors.ErrInvalidTransition) {
			t.Errorf("from %s: tech cancel must never surface as a transition error", from)
		}
	}
}

// Re-cancelling a cancelled assignment is an idempotent success that
// persists nothing, not an error.
func TestIdempotentCancel(t *testing.T) {
	supID := types.NewID()
	canceledAt := time.Now().Add(-time.Hour)
	a := pendingAssignment(types.NewID())
	a.Status = domain.StatusCancelled
	a.CanceledAt = &canceledAt

	snap := AssignmentSnapshot{Assignment: a, TechnicianSupervisorID: supID}

	for _, id := range []Identity{
		{UserID: supID, Role: RoleSupervisor},
		{UserID: types.NewID(), Role: RoleAdmin},
		{UserID: a.TechnicianID, Role: RoleRepair},
	} {
		applied, err := AuthorizeAssignmentMutation(id, snap, statusChange(domain.StatusCancelled))
		if err != nil {
			t.Fatalf("%s: expected idempotent allow, got %v", id.Role, err)
		}
		if !applied.NoOp {
			t.Errorf("%s: re-cancel should be a no-op", id.Role)
		}
		if applied.StatusChange != nil {
			t.Errorf("%s: re-cancel must not produce a new canceled_at", id.Role)
		}
	}
}

// Field violations beat transition violations: the payload's illegal field
// is reported even when the status transition alone would be legal.
func TestFieldViolationBeatsTransitionCheck(t *testing.T) {
	techID := types.NewID()
	tech := Identity{UserID: techID, Role: RoleTech}
	snap := AssignmentSnapshot{Assignment: pendingAssignment(techID)}

	change := AssignmentChange{
		Fields: []Field{FieldStatus, FieldPriority},
		Status: domain.StatusInProgress,
	}
	_, err := AuthorizeAssignmentMutation(tech, snap, change)
	appErr := assertCode(t, err, "FORBIDDEN_FIELD")
	if appErr.Details["field"] != "priority" {
		t.Errorf("expected priority reported, got %q", appErr.Details["field"])
	}

	// Even when the transition would also be illegal
	change = AssignmentChange{
		Fields: []Field{FieldStatus, FieldPriority},
		Status: domain.StatusCompleted, // pending -> completed is illegal for a tech
	}
	_, err = AuthorizeAssignmentMutation(tech, snap, change)
	appErr = assertCode(t, err, "FORBIDDEN_FIELD")
	if appErr.Details["field"] != "priority" {
		t.Errorf("expected priority reported, got %q", appErr.Details["field"])
	}
}

// Completion stamps completed_at exactly once.
func TestCompletionStampsTimestampOnce(t *testing.T) {
	techID := types.NewID()
	tech := Identity{UserID: techID, Role: RoleTech}

	a := pendingAssignment(techID)
	a.Status = domain.StatusInProgress
	snap := AssignmentSnapshot{Assignment: a}

	before := time.Now()
	applied, err := AuthorizeAssignmentMutation(tech, snap, statusChange(domain.StatusCompleted))
	if err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
	if applied.StatusChange == nil || applied.StatusChange.CompletedAt == nil {
		t.Fatal("completion should stamp completed_at")
	}
	if applied.StatusChange.CompletedAt.Before(before) {
		t.Error("completed_at should be now, not in the past")
	}

	// Replay: the assignment is already completed with a timestamp. A
	// repeated completed write skips the state machine and derives nothing.
	stamped := *applied.StatusChange.CompletedAt
	a.Status = domain.StatusCompleted
	a.CompletedAt = &stamped

	applied, err = AuthorizeAssignmentMutation(tech, snap, statusChange(domain.StatusCompleted))
	if err != nil {
		t.Fatalf("replay should be allowed, got %v", err)
	}
	if applied.StatusChange != nil {
		t.Error("replayed completion must not derive a new timestamp")
	}
}

func TestIllegalTransitions(t *testing.T) {
	techID := types.NewID()
	supID := types.NewID()

	tests := []struct {
		name string
		id   Identity
		from domain.Status
		to   domain.Status
	}{
		{"tech skips straight to completed", Identity{UserID: techID, Role: RoleTech}, domain.StatusPending, domain.StatusCompleted},
		{"supervisor skips straight to completed", Identity{UserID: supID, Role: RoleSupervisor}, domain.StatusPending, domain.StatusCompleted},
		{"supervisor reopens completed", Identity{UserID: supID, Role: RoleSupervisor}, domain.StatusCompleted, domain.StatusInProgress},
		{"supervisor resurrects cancelled", Identity{UserID: supID, Role: RoleSupervisor}, domain.StatusCancelled, domain.StatusPending},
		{"tech reopens completed", Identity{UserID: techID, Role: RoleTech}, domain.StatusCompleted, domain.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := pendingAssignment(techID)
			a.Status = tt.from
			snap := AssignmentSnapshot{Assignment: a, TechnicianSupervisorID: supID}

			_, err := AuthorizeAssignmentMutation(tt.id, snap, statusChange(tt.to))
			assertCode(t, err, "INVALID_TRANSITION")
		})
	}
}

// Repair and admin status writes are direct field sets: the table does not
// bind them, which is how completed records get corrected.
func TestRepairAndAdminOverrideTerminalStates(t *testing.T) {
	for _, role := range []Role{RoleRepair, RoleAdmin} {
		// repair only sees its own assigned work, so make it the owner
		ownerID := types.NewID()
		id := Identity{UserID: ownerID, Role: role}

		a := pendingAssignment(ownerID)
		a.Status = domain.StatusCompleted
		now := time.Now()
		a.CompletedAt = &now
		snap := AssignmentSnapshot{Assignment: a}

		applied, err := AuthorizeAssignmentMutation(id, snap, statusChange(domain.StatusInProgress))
		if err != nil {
			t.Fatalf("%s: expected override to be allowed, got %v", role, err)
		}
		if applied.StatusChange == nil || applied.StatusChange.Status != domain.StatusInProgress {
			t.Errorf("%s: expected in_progress override", role)
		}
	}
}

func TestTechCannotTouchAnotherTechsAssignment(t *testing.T) {
	tech := Identity{UserID: types.NewID(), Role: RoleTech}
	snap := AssignmentSnapshot{Assignment: pendingAssignment(types.NewID())}

	// Out of a tech's read scope entirely, so invisible rather than
	// forbidden.
	_, err := AuthorizeAssignmentMutation(tech, snap, statusChange(domain.StatusInProgress))
	assertCode(t, err, "NOT_FOUND")
}

func TestNonStatusMutationSkipsStateMachine(t *testing.T) {
	supID := types.NewID()
	sup := Identity{UserID: supID, Role: RoleSupervisor}

	// Even on a cancelled (terminal) record, note edits pass the gate;
	// terminality binds status changes only.
	a := pendingAssignment(types.NewID())
	a.Status = domain.StatusCancelled
	snap := AssignmentSnapshot{Assignment: a, TechnicianSupervisorID: supID}

	applied, err := AuthorizeAssignmentMutation(sup, snap, AssignmentChange{Fields: []Field{FieldNotes}})
	if err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
	if applied.StatusChange != nil || applied.NoOp {
		t.Error("non-status mutation should not produce derived fields")
	}
}

func TestAbsentAssignmentIsNotFound(t *testing.T) {
	admin := Identity{UserID: types.NewID(), Role: RoleAdmin}
	_, err := AuthorizeAssignmentMutation(admin, AssignmentSnapshot{}, statusChange(domain.StatusInProgress))
	assertCode(t, err, "NOT_FOUND")
}

// --- Technician profile gate ---

func TestTechEditsOwnProfile(t *testing.T) {
	techID := types.NewID()
	tech := Identity{UserID: techID, Role: RoleTech}
	profile := TechnicianView{UserID: techID, SupervisorID: types.NewID(), Active: true}

	err := AuthorizeTechnicianMutation(tech, profile, TechnicianChange{
		Fields: []Field{FieldName, FieldPhone, FieldTruckID},
	})
	if err != nil {
		t.Fatalf("expected allow, got %v", err)
	}

	err = AuthorizeTechnicianMutation(tech, profile, TechnicianChange{Fields: []Field{FieldActive}})
	assertCode(t, err, "FORBIDDEN_FIELD")
}

func TestTechCannotSeeForeignProfile(t *testing.T) {
	tech := Identity{UserID: types.NewID(), Role: RoleTech}
	profile := TechnicianView{UserID: types.NewID(), Active: true}

	err := AuthorizeTechnicianMutation(tech, profile, TechnicianChange{Fields: []Field{FieldName}})
	assertCode(t, err, "NOT_FOUND")
}

func TestSupervisorClaimAndRelease(t *testing.T) {
	supID := types.NewID()
	sup := Identity{UserID: supID, Role: RoleSupervisor}

	unassigned := TechnicianView{UserID: types.NewID(), Active: true}
	ownTech := TechnicianView{UserID: types.NewID(), SupervisorID: supID, Active: true}
	foreignTech := TechnicianView{UserID: types.NewID(), SupervisorID: types.NewID(), Active: true}

	claim := TechnicianChange{Fields: []Field{FieldSupervisorID}, SupervisorID: supID}
	release := TechnicianChange{Fields: []Field{FieldSupervisorID}}

	if err := AuthorizeTechnicianMutation(sup, unassigned, claim); err != nil {
		t.Errorf("claiming an unassigned technician should be allowed: %v", err)
	}
	if err := AuthorizeTechnicianMutation(sup, ownTech, claim); err != nil {
		t.Errorf("re-claiming an own technician should be allowed: %v", err)
	}
	if err := AuthorizeTechnicianMutation(sup, ownTech, release); err != nil {
		t.Errorf("releasing an own technician should be allowed: %v", err)
	}

	// Another supervisor's technician is invisible
	err := AuthorizeTechnicianMutation(sup, foreignTech, claim)
	assertCode(t, err, "NOT_FOUND")

	// A supervisor cannot hand a technician to a third supervisor
	poach := TechnicianChange{Fields: []Field{FieldSupervisorID}, SupervisorID: types.NewID()}
	err = AuthorizeTechnicianMutation(sup, ownTech, poach)
	assertCode(t, err, "FORBIDDEN")

	// Releasing an unassigned technician is not a release
	err = AuthorizeTechnicianMutation(sup, unassigned, release)
	assertCode(t, err, "FORBIDDEN")
}

func TestSupervisorCannotEditUnassignedWithoutClaim(t *testing.T) {
	sup := Identity{UserID: types.NewID(), Role: RoleSupervisor}
	unassigned := TechnicianView{UserID: types.NewID(), Active: true}

	// Visible (claimable) but not writable without the claim itself
	err := AuthorizeTechnicianMutation(sup, unassigned, TechnicianChange{Fields: []Field{FieldName}})
	assertCode(t, err, "FORBIDDEN")
}

func TestAdminAndRepairEditAnyProfile(t *testing.T) {
	profile := TechnicianView{UserID: types.NewID(), SupervisorID: types.NewID(), Active: true}

	for _, role := range []Role{RoleAdmin, RoleRepair} {
		id := Identity{UserID: types.NewID(), Role: role}
		err := AuthorizeTechnicianMutation(id, profile, TechnicianChange{
			Fields:       []Field{FieldName, FieldActive, FieldSupervisorID, FieldRegion},
			SupervisorID: types.NewID(),
		})
		if err != nil {
			t.Errorf("%s should edit any profile field: %v", role, err)
		}
	}
}

// A cancellation reason never lands on a record that is not cancelled: a
// supervisor may write it only while cancelling or on an already-cancelled
// assignment. Repair and admin set fields directly.
func TestCanceledReasonRequiresCancellation(t *testing.T) {
	supID := types.NewID()
	sup := Identity{UserID: supID, Role: RoleSupervisor}
	reason := "customer moved out"
	reasonOnly := AssignmentChange{
		Fields:         []Field{FieldCanceledReason},
		CanceledReason: &reason,
	}

	pending := AssignmentSnapshot{
		Assignment:             pendingAssignment(types.NewID()),
		TechnicianSupervisorID: supID,
	}

	_, err := AuthorizeAssignmentMutation(sup, pending, reasonOnly)
	assertCode(t, err, "VALIDATION_ERROR")

	// Writing the reason as part of the cancellation is the normal path.
	cancelWithReason := AssignmentChange{
		Fields:         []Field{FieldStatus, FieldCanceledReason},
		Status:         domain.StatusCancelled,
		CanceledReason: &reason,
	}
	if _, err := AuthorizeAssignmentMutation(sup, pending, cancelWithReason); err != nil {
		t.Fatalf("cancel with reason should be allowed, got %v", err)
	}

	// Amending the reason on an already-cancelled record is allowed.
	canceledAt := time.Now().Add(-time.Hour)
	a := pendingAssignment(pending.Assignment.TechnicianID)
	a.Status = domain.StatusCancelled
	a.CanceledAt = &canceledAt
	cancelled := AssignmentSnapshot{Assignment: a, TechnicianSupervisorID: supID}
	if _, err := AuthorizeAssignmentMutation(sup, cancelled, reasonOnly); err != nil {
		t.Fatalf("amending the reason on a cancelled record should be allowed, got %v", err)
	}

	// Repair and admin are exempt: direct field sets for corrections.
	for _, id := range []Identity{
		{UserID: pending.Assignment.TechnicianID, Role: RoleRepair},
		{UserID: types.NewID(), Role: RoleAdmin},
	} {
		if _, err := AuthorizeAssignmentMutation(id, pending, reasonOnly); err != nil {
			t.Errorf("%s: expected allow, got %v", id.Role, err)
		}
	}
}
