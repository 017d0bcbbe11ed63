package technician

import (
	"time"

	"github.com/zerocool-source/apiV2/internal/shared/types"
)

// Profile is a technician's roster record. SupervisorID is zero while the
// technician is unassigned.
type Profile struct {
	UserID       types.ID     `json:"user_id"`
	SupervisorID types.ID     `json:"supervisor_id,omitempty"`
	Name         string       `json:"name"`
	Phone        string       `json:"phone,omitempty"`
	TruckID      string       `json:"truck_id,omitempty"`
	Region       types.Region `json:"region"`
	Active       bool         `json:"active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
