package domain

// Event types published to the audit stream when assignments change
const (
	EventAssignmentCreated       = "workorder.assignment.created"
	EventAssignmentUpdated       = "workorder.assignment.updated"
	EventAssignmentStatusChanged = "workorder.assignment.status_changed"
	EventAssignmentReassigned    = "workorder.assignment.reassigned"
)
