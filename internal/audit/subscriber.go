package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zerocool-source/apiV2/internal/shared/events"
	"github.com/zerocool-source/apiV2/internal/shared/metrics"
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

// Store is the persistence surface the subscriber needs
type Store interface {
	Append(ctx context.Context, entry *Entry) error
}

// Subscriber materializes domain events into audit entries
type Subscriber struct {
	store Store
	bus   *events.Bus
}

// NewSubscriber creates a new audit subscriber
func NewSubscriber(store Store, bus *events.Bus) *Subscriber {
	return &Subscriber{store: store, bus: bus}
}

// Start subscribes to the audited event categories. Runs until the
// context is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	for _, prefix := range []string{"workorder.", "auth.", "legacy."} {
		if err := s.bus.Subscribe(ctx, prefix, s.handleEvent); err != nil {
			return fmt.Errorf("failed to subscribe to %s events: %w", prefix, err)
		}
	}
	return nil
}

func (s *Subscriber) handleEvent(ctx context.Context, event events.Event) error {
	entry := entryFromEvent(event)
	if entry == nil {
		return nil
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return err
	}
	metrics.RecordAuditEntry()
	return nil
}

// entryFromEvent converts a domain event to an audit entry, nil when the
// event carries nothing auditable
func entryFromEvent(event events.Event) *Entry {
	parts := strings.SplitN(event.Type, ".", 2)
	if len(parts) < 2 {
		return nil
	}
	resourceType := parts[0]

	entry := &Entry{
		ID:           types.NewID(),
		EventID:      event.ID,
		Action:       event.Type,
		ResourceType: resourceType,
		ActorID:      event.ActorID,
		ActorRole:    event.ActorRole,
		OccurredAt:   event.Timestamp.UTC().Truncate(time.Microsecond),
	}

	if data, ok := event.Data.(map[string]any); ok {
		entry.Changes = data
		entry.ResourceID = extractResourceID(data)
	}

	return entry
}

// extractResourceID looks for the conventional ID fields in event data
func extractResourceID(data map[string]any) types.ID {
	for _, field := range []string{"assignment_id", "technician_id", "property_id", "user_id", "id"} {
		val, ok := data[field]
		if !ok {
			continue
		}
		switch v := val.(type) {
		case string:
			return types.ID(v)
		case types.ID:
			return v
		}
	}
	return ""
}
