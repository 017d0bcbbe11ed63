package audit

import (
	"strings"
	"testing"
	"time"

	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/events"
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

func TestEntryFromEvent(t *testing.T) {
	actorID := types.NewID()
	assignmentID := types.NewID()

	event := events.NewEvent("workorder.assignment.status_changed", "workorder", map[string]any{
		"assignment_id": assignmentID.String(),
		"from":          "pending",
		"to":            "in_progress",
	}).WithActor(actorID, "tech")

	entry := entryFromEvent(event)
	if entry == nil {
		t.Fatal("expected an entry")
	}
	if entry.Action != "workorder.assignment.status_changed" {
		t.Errorf("unexpected action %q", entry.Action)
	}
	if entry.ResourceType != "workorder" {
		t.Errorf("unexpected resource type %q", entry.ResourceType)
	}
	if entry.ResourceID != assignmentID {
		t.Errorf("expected resource ID %s, got %s", assignmentID, entry.ResourceID)
	}
	if entry.ActorID != actorID || entry.ActorRole != "tech" {
		t.Error("actor not carried over")
	}
	if entry.Changes["to"] != "in_progress" {
		t.Error("changes not carried over")
	}
	if entry.OccurredAt.After(time.Now()) {
		t.Error("occurred_at in the future")
	}
}

func TestEntryFromEventWithoutCategory(t *testing.T) {
	event := events.NewEvent("heartbeat", "system", nil)
	if entry := entryFromEvent(event); entry != nil {
		t.Errorf("expected nil for uncategorized event, got %+v", entry)
	}
}

func TestExtractResourceID(t *testing.T) {
	assignmentID := types.NewID()
	technicianID := types.NewID()

	tests := []struct {
		name string
		data map[string]any
		want types.ID
	}{
		{
			"assignment wins over technician",
			map[string]any{
				"assignment_id": assignmentID.String(),
				"technician_id": technicianID.String(),
			},
			assignmentID,
		},
		{
			"typed ID value",
			map[string]any{"technician_id": technicianID},
			technicianID,
		},
		{
			"no recognizable ID",
			map[string]any{"count": 3},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractResourceID(tt.data); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAuditScopeCondition(t *testing.T) {
	owner := types.NewID()
	team := types.NewID()

	t.Run("all", func(t *testing.T) {
		argNum := 1
		var args []interface{}
		if cond := auditScopeCondition(authz.Scope{All: true}, &argNum, &args); cond != "" {
			t.Errorf("expected no condition, got %q", cond)
		}
		if len(args) != 0 {
			t.Errorf("expected no args, got %v", args)
		}
	})

	t.Run("none", func(t *testing.T) {
		argNum := 1
		var args []interface{}
		if cond := auditScopeCondition(authz.Scope{None: true}, &argNum, &args); cond != "FALSE" {
			t.Errorf("expected FALSE, got %q", cond)
		}
	})

	t.Run("owner", func(t *testing.T) {
		argNum := 1
		var args []interface{}
		cond := auditScopeCondition(authz.Scope{OwnerID: owner}, &argNum, &args)
		for _, want := range []string{"actor_id = $1", "technician_id = $1"} {
			if !strings.Contains(cond, want) {
				t.Errorf("expected condition to contain %q, got %q", want, cond)
			}
		}
		if argNum != 2 || len(args) != 1 || args[0] != owner {
			t.Errorf("expected one bound arg, got argNum=%d args=%v", argNum, args)
		}
	})

	t.Run("team", func(t *testing.T) {
		argNum := 1
		var args []interface{}
		cond := auditScopeCondition(authz.Scope{TeamOf: team}, &argNum, &args)
		for _, want := range []string{
			"actor_id = $1",
			"supervisor_id = $1",
			"resource_type = 'assignment'",
			"resource_type = 'technician'",
			"supervisor_id IS NULL",
		} {
			if !strings.Contains(cond, want) {
				t.Errorf("expected condition to contain %q, got %q", want, cond)
			}
		}
		if argNum != 2 || len(args) != 1 || args[0] != team {
			t.Errorf("expected one bound arg, got argNum=%d args=%v", argNum, args)
		}
	})
}
