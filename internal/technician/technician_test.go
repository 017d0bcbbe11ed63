package technician

import (
	"testing"

	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

func TestBuildChangeFieldOrder(t *testing.T) {
	name := "Ana"
	truck := "T-14"
	active := false

	change, params := buildChange(UpdateTechnicianRequest{
		Name:    &name,
		TruckID: &truck,
		Active:  &active,
	})

	want := []authz.Field{authz.FieldName, authz.FieldTruckID, authz.FieldActive}
	if len(change.Fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(change.Fields))
	}
	for i, f := range want {
		if change.Fields[i] != f {
			t.Errorf("field %d: expected %s, got %s", i, f, change.Fields[i])
		}
	}
	if params.Name == nil || *params.Name != "Ana" {
		t.Error("expected name param to be set")
	}
	if params.Active == nil || *params.Active {
		t.Error("expected active=false param")
	}
}

func TestBuildChangeSupervisorRelease(t *testing.T) {
	zero := types.ID("")
	change, params := buildChange(UpdateTechnicianRequest{SupervisorID: &zero})

	if !change.Has(authz.FieldSupervisorID) {
		t.Fatal("expected supervisor_id in change")
	}
	if !change.SupervisorID.IsZero() {
		t.Error("expected zero supervisor target")
	}
	if !params.ClearSupervisor {
		t.Error("expected ClearSupervisor to be set")
	}
	if params.SupervisorID != nil {
		t.Error("expected no supervisor param on release")
	}
}

func TestBuildChangeSupervisorClaim(t *testing.T) {
	supID := types.NewID()
	change, params := buildChange(UpdateTechnicianRequest{SupervisorID: &supID})

	if change.SupervisorID != supID {
		t.Errorf("expected supervisor target %s, got %s", supID, change.SupervisorID)
	}
	if params.ClearSupervisor {
		t.Error("did not expect ClearSupervisor")
	}
	if params.SupervisorID == nil || *params.SupervisorID != supID {
		t.Error("expected supervisor param to be set")
	}
}

func TestProfileScopeCondition(t *testing.T) {
	owner := types.NewID()
	team := types.NewID()

	tests := []struct {
		name     string
		scope    authz.Scope
		wantCond string
		wantArg  bool
	}{
		{"all", authz.Scope{All: true}, "", false},
		{"none", authz.Scope{None: true}, "FALSE", false},
		{"owner", authz.Scope{OwnerID: owner}, "user_id = $1", true},
		{"team", authz.Scope{TeamOf: team}, "supervisor_id = $1", true},
		{
			"team with unassigned",
			authz.Scope{TeamOf: team, IncludeUnassigned: true},
			"(supervisor_id = $1 OR supervisor_id IS NULL)",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			argNum := 1
			cond, arg := profileScopeCondition(tt.scope, &argNum)
			if cond != tt.wantCond {
				t.Errorf("expected condition %q, got %q", tt.wantCond, cond)
			}
			if (arg != nil) != tt.wantArg {
				t.Errorf("expected arg present=%v, got %v", tt.wantArg, arg)
			}
		})
	}
}
