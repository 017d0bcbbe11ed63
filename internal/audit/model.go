package audit

import (
	"time"

	"github.com/zerocool-source/apiV2/internal/shared/types"
)

// Entry is one materialized audit record. Entries are derived from the
// event stream by the subscriber and are append-only.
type Entry struct {
	ID           types.ID       `json:"id"`
	EventID      string         `json:"event_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   types.ID       `json:"resource_id,omitempty"`
	ActorID      types.ID       `json:"actor_id,omitempty"`
	ActorRole    string         `json:"actor_role,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
	RecordedAt   time.Time      `json:"recorded_at"`
}

// ListFilter narrows audit listings
type ListFilter struct {
	Action       string
	ResourceType string
	ResourceID   *types.ID
	ActorID      *types.ID
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}
