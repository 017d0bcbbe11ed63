package authz

import (
	"testing"

	"github.com/zerocool-source/apiV2/internal/shared/errors"
)

func TestAssignmentFieldMatrix(t *testing.T) {
	tests := []struct {
		name      string
		role      Role
		fields    []Field
		wantField string // empty means allowed
	}{
		{"tech status and notes", RoleTech, []Field{FieldStatus, FieldNotes}, ""},
		{"tech priority denied", RoleTech, []Field{FieldPriority}, "priority"},
		{"tech scheduled date denied", RoleTech, []Field{FieldScheduledDate}, "scheduled_date"},
		{"tech reassign denied", RoleTech, []Field{FieldTechnicianID}, "technician_id"},
		{"tech completed_at denied", RoleTech, []Field{FieldCompletedAt}, "completed_at"},
		{"supervisor scheduling fields", RoleSupervisor, []Field{FieldPriority, FieldScheduledDate, FieldNotes}, ""},
		{"supervisor cancel reason", RoleSupervisor, []Field{FieldStatus, FieldCanceledReason}, ""},
		{"supervisor reassign denied", RoleSupervisor, []Field{FieldTechnicianID}, "technician_id"},
		{"supervisor completed_at denied", RoleSupervisor, []Field{FieldCompletedAt}, "completed_at"},
		{"repair everything", RoleRepair, assignmentFieldOrder, ""},
		{"admin everything", RoleAdmin, assignmentFieldOrder, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFields(tt.role, ResourceAssignment, tt.fields)
			assertFieldResult(t, err, tt.wantField)
		})
	}
}

func TestTechnicianFieldMatrix(t *testing.T) {
	tests := []struct {
		name      string
		role      Role
		fields    []Field
		wantField string
	}{
		{"tech contact fields", RoleTech, []Field{FieldName, FieldPhone, FieldTruckID}, ""},
		{"tech cannot deactivate", RoleTech, []Field{FieldActive}, "active"},
		{"tech cannot move teams", RoleTech, []Field{FieldSupervisorID}, "supervisor_id"},
		{"tech cannot change region", RoleTech, []Field{FieldRegion}, "region"},
		{"supervisor can deactivate", RoleSupervisor, []Field{FieldActive}, ""},
		{"supervisor claim field", RoleSupervisor, []Field{FieldSupervisorID}, ""},
		{"supervisor region denied", RoleSupervisor, []Field{FieldRegion}, "region"},
		{"admin everything", RoleAdmin, technicianFieldOrder, ""},
		{"repair everything", RoleRepair, technicianFieldOrder, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFields(tt.role, ResourceTechnician, tt.fields)
			assertFieldResult(t, err, tt.wantField)
		})
	}
}

// The first forbidden field in declaration order is reported, regardless of
// payload order, so clients always get the same denial for the same payload.
func TestFirstViolationInDeclarationOrderWins(t *testing.T) {
	err := CheckFields(RoleTech, ResourceAssignment,
		[]Field{FieldCompletedAt, FieldScheduledDate, FieldPriority})
	assertFieldResult(t, err, "priority")

	err = CheckFields(RoleTech, ResourceTechnician,
		[]Field{FieldRegion, FieldSupervisorID, FieldActive})
	assertFieldResult(t, err, "active")
}

func TestUnknownFieldDenied(t *testing.T) {
	err := CheckFields(RoleAdmin, ResourceAssignment, []Field{Field("billing_rate")})
	assertFieldResult(t, err, "billing_rate")
}

func TestEmptyPayloadAllowed(t *testing.T) {
	if err := CheckFields(RoleTech, ResourceAssignment, nil); err != nil {
		t.Errorf("empty field set should pass: %v", err)
	}
}

func assertFieldResult(t *testing.T, err error, wantField string) {
	t.Helper()

	if wantField == "" {
		if err != nil {
			t.Fatalf("expected allow, got %v", err)
		}
		return
	}

	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("expected AppError, got %T (%v)", err, err)
	}
	if appErr.Code != "FORBIDDEN_FIELD" {
		t.Errorf("expected FORBIDDEN_FIELD, got %s", appErr.Code)
	}
	if appErr.Details["field"] != wantField {
		t.Errorf("expected field %q, got %q", wantField, appErr.Details["field"])
	}
}
