package auth

import (
	"time"

	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

// User is an account that can authenticate against the platform
type User struct {
	ID           types.ID     `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Name         string       `json:"name"`
	Role         authz.Role   `json:"role"`
	Region       types.Region `json:"region,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
