package authz

import (
	"github.com/zerocool-source/apiV2/internal/shared/errors"
)

// Field names a mutable attribute on a gated resource. The names match the
// JSON payload keys so denial messages point at what the caller sent.
type Field string

// Assignment fields
const (
	FieldStatus         Field = "status"
	FieldPriority       Field = "priority"
	FieldScheduledDate  Field = "scheduled_date"
	FieldTechnicianID   Field = "technician_id"
	FieldPropertyID     Field = "property_id"
	FieldCompletedAt    Field = "completed_at"
	FieldCanceledReason Field = "canceled_reason"
	FieldNotes          Field = "notes"
)

// Technician profile fields
const (
	FieldName         Field = "name"
	FieldPhone        Field = "phone"
	FieldTruckID      Field = "truck_id"
	FieldActive       Field = "active"
	FieldSupervisorID Field = "supervisor_id"
	FieldRegion       Field = "region"
)

// Declaration order per resource. When a payload touches several forbidden
// fields the first one in this order is the one reported, so denial
// messages are deterministic.
var (
	assignmentFieldOrder = []Field{
		FieldStatus, FieldPriority, FieldScheduledDate, FieldTechnicianID,
		FieldPropertyID, FieldCompletedAt, FieldCanceledReason, FieldNotes,
	}
	technicianFieldOrder = []Field{
		FieldName, FieldPhone, FieldTruckID, FieldActive,
		FieldSupervisorID, FieldRegion,
	}
)

// Field grants by role. The matrix is value-independent: it answers "may
// this role touch this field at all". Value-conditional rules (a tech can
// never target cancelled, a supervisor may only claim or release a
// technician) live in the gate's transition and team checks.
var assignmentFields = map[Role]map[Field]bool{
	RoleTech: {
		FieldStatus: true,
		FieldNotes:  true,
	},
	RoleSupervisor: {
		FieldStatus:         true,
		FieldPriority:       true,
		FieldScheduledDate:  true,
		FieldCanceledReason: true,
		FieldNotes:          true,
	},
	RoleRepair: allAssignmentFields(),
	RoleAdmin:  allAssignmentFields(),
}

var technicianFields = map[Role]map[Field]bool{
	RoleTech: {
		FieldName:    true,
		FieldPhone:   true,
		FieldTruckID: true,
	},
	RoleSupervisor: {
		FieldName:         true,
		FieldPhone:        true,
		FieldTruckID:      true,
		FieldActive:       true,
		FieldSupervisorID: true,
	},
	RoleRepair: allTechnicianFields(),
	RoleAdmin:  allTechnicianFields(),
}

func allAssignmentFields() map[Field]bool {
	m := make(map[Field]bool, len(assignmentFieldOrder))
	for _, f := range assignmentFieldOrder {
		m[f] = true
	}
	return m
}

func allTechnicianFields() map[Field]bool {
	m := make(map[Field]bool, len(technicianFieldOrder))
	for _, f := range technicianFieldOrder {
		m[f] = true
	}
	return m
}

// CheckFields rejects a mutation that touches any field the role may not
// set on the resource, independent of the value being written. It runs
// before transition checks, so a forbidden-field denial always wins over an
// invalid-transition denial when a payload earns both.
func CheckFields(role Role, resource ResourceType, fields []Field) error {
	var order []Field
	var grants map[Role]map[Field]bool

	switch resource {
	case ResourceAssignment:
		order, grants = assignmentFieldOrder, assignmentFields
	case ResourceTechnician:
		order, grants = technicianFieldOrder, technicianFields
	default:
		return errors.Forbidden("resource does not accept field mutations")
	}

	permitted := grants[role]
	touched := make(map[Field]bool, len(fields))
	for _, f := range fields {
		touched[f] = true
	}

	for _, f := range order {
		if touched[f] && !permitted[f] {
			return errors.ForbiddenField(string(f))
		}
		delete(touched, f)
	}

	// Anything left was never declared for this resource
	for _, f := range fields {
		if touched[f] {
			return errors.ForbiddenField(string(f))
		}
	}

	return nil
}
