package domain

import (
	"fmt"
	"time"

	"github.com/zerocool-source/apiV2/internal/shared/types"
)

// Status defines the lifecycle state of an assignment
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus validates a status string. The legacy API accepted both
// "cancelled" and "canceled"; the single-l spelling is normalized here so
// only one canonical value exists past the boundary.
func ParseStatus(s string) (Status, error) {
	if s == "canceled" {
		return StatusCancelled, nil
	}
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid status: %q", s)
}

// Priority defines assignment priority
type Priority string

const (
	PriorityLow  Priority = "low"
	PriorityMed  Priority = "med"
	PriorityHigh Priority = "high"
)

// ParsePriority validates a priority string
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityLow, PriorityMed, PriorityHigh:
		return Priority(s), nil
	}
	return "", fmt.Errorf("invalid priority: %q", s)
}

// Assignment is a unit of scheduled work at a property. An assignment is
// owned by exactly one technician and is never physically deleted;
// cancellation is its terminal state.
type Assignment struct {
	ID            types.ID  `json:"id"`
	PropertyID    types.ID  `json:"property_id"`
	TechnicianID  types.ID  `json:"technician_id"`
	Status        Status    `json:"status"`
	Priority      Priority  `json:"priority"`
	ScheduledDate time.Time `json:"scheduled_date"`

	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CanceledAt     *time.Time `json:"canceled_at,omitempty"`
	CanceledReason *string    `json:"canceled_reason,omitempty"`
	Notes          string     `json:"notes"`

	// Version supports optimistic concurrency on updates
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a pending assignment
func New(propertyID, technicianID types.ID, priority Priority, scheduledDate time.Time) (*Assignment, error) {
	if propertyID.IsZero() {
		return nil, fmt.Errorf("property is required")
	}
	if technicianID.IsZero() {
		return nil, fmt.Errorf("technician is required")
	}
	if scheduledDate.IsZero() {
		return nil, fmt.Errorf("scheduled date is required")
	}
	if priority == "" {
		priority = PriorityMed
	}

	now := time.Now()
	return &Assignment{
		ID:            types.NewID(),
		PropertyID:    propertyID,
		TechnicianID:  technicianID,
		Status:        StatusPending,
		Priority:      priority,
		ScheduledDate: scheduledDate,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
