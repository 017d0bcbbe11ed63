package property

import (
	"time"

	"github.com/zerocool-source/apiV2/internal/shared/types"
)

// Property is a serviced pool location
type Property struct {
	ID        types.ID     `json:"id"`
	Address   string       `json:"address"`
	Region    types.Region `json:"region"`
	LegacyRef string       `json:"legacy_ref,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
