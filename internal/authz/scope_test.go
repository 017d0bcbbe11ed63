package authz

import (
	"testing"

	"github.com/zerocool-source/apiV2/internal/shared/types"
)

func TestResolveReadScopeAdmin(t *testing.T) {
	admin := Identity{UserID: types.NewID(), Role: RoleAdmin}

	for _, resource := range []ResourceType{ResourceAssignment, ResourceTechnician, ResourceProperty} {
		scope := ResolveReadScope(admin, resource, nil)
		if !scope.All {
			t.Errorf("admin scope for %s should be unrestricted", resource)
		}
		if scope.None {
			t.Errorf("admin scope for %s should not be empty", resource)
		}
	}
}

func TestResolveReadScopeTech(t *testing.T) {
	techID := types.NewID()
	tech := Identity{UserID: techID, Role: RoleTech}

	for _, resource := range []ResourceType{ResourceAssignment, ResourceTechnician, ResourceProperty} {
		scope := ResolveReadScope(tech, resource, nil)
		if scope.All {
			t.Errorf("tech scope for %s should not be unrestricted", resource)
		}
		if scope.OwnerID != techID {
			t.Errorf("tech scope for %s should be owner-bound, got %+v", resource, scope)
		}
	}
}

func TestResolveReadScopeRepair(t *testing.T) {
	repairID := types.NewID()
	repair := Identity{UserID: repairID, Role: RoleRepair}

	// Full roster visibility
	if scope := ResolveReadScope(repair, ResourceTechnician, nil); !scope.All {
		t.Error("repair should see the full technician roster")
	}

	// Own-work scoping everywhere else
	for _, resource := range []ResourceType{ResourceAssignment, ResourceProperty} {
		scope := ResolveReadScope(repair, resource, nil)
		if scope.All {
			t.Errorf("repair scope for %s should not be unrestricted", resource)
		}
		if scope.OwnerID != repairID {
			t.Errorf("repair scope for %s should follow its own work", resource)
		}
	}
}

func TestResolveReadScopeSupervisor(t *testing.T) {
	supID := types.NewID()
	sup := Identity{UserID: supID, Role: RoleSupervisor}

	assignScope := ResolveReadScope(sup, ResourceAssignment, nil)
	if assignScope.TeamOf != supID {
		t.Errorf("supervisor assignment scope should be team-bound, got %+v", assignScope)
	}

	techScope := ResolveReadScope(sup, ResourceTechnician, nil)
	if techScope.TeamOf != supID {
		t.Errorf("supervisor technician scope should be team-bound, got %+v", techScope)
	}
	if !techScope.IncludeUnassigned {
		t.Error("supervisor technician scope should admit unassigned profiles for claiming")
	}

	self := &TechnicianView{UserID: supID, Region: types.RegionNorth}
	propScope := ResolveReadScope(sup, ResourceProperty, self)
	if propScope.TeamOf != supID || propScope.Region != types.RegionNorth {
		t.Errorf("supervisor property scope should union team and region, got %+v", propScope)
	}
}

func TestSupervisorWithoutRegionOrTeamYieldsEmptySet(t *testing.T) {
	sup := Identity{UserID: types.NewID(), Role: RoleSupervisor}

	// No self profile: no region half. The team half matches nothing when
	// no technician carries this supervisor's id.
	scope := ResolveReadScope(sup, ResourceProperty, nil)
	if scope.Region != "" {
		t.Errorf("expected no region, got %q", scope.Region)
	}

	other := AssignmentView{
		TechnicianID:           types.NewID(),
		TechnicianSupervisorID: types.NewID(),
	}
	if ResolveReadScope(sup, ResourceAssignment, nil).MatchesAssignment(other) {
		t.Error("supervisor with no team should match no assignments")
	}
}

func TestMatchesAssignment(t *testing.T) {
	techID := types.NewID()
	supID := types.NewID()
	otherSup := types.NewID()

	view := AssignmentView{TechnicianID: techID, TechnicianSupervisorID: supID}
	unassigned := AssignmentView{TechnicianID: techID}

	tests := []struct {
		name  string
		scope Scope
		view  AssignmentView
		want  bool
	}{
		{"all matches", Scope{All: true}, view, true},
		{"none matches nothing", Scope{None: true}, view, false},
		{"owner match", Scope{OwnerID: techID}, view, true},
		{"owner mismatch", Scope{OwnerID: types.NewID()}, view, false},
		{"team match", Scope{TeamOf: supID}, view, true},
		{"team mismatch", Scope{TeamOf: otherSup}, view, false},
		{"team never matches unassigned tech", Scope{TeamOf: supID}, unassigned, false},
		{"zero scope matches nothing", Scope{}, view, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scope.MatchesAssignment(tt.view); got != tt.want {
				t.Errorf("MatchesAssignment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesTechnician(t *testing.T) {
	supID := types.NewID()
	techID := types.NewID()

	onTeam := TechnicianView{UserID: techID, SupervisorID: supID}
	unassigned := TechnicianView{UserID: techID}

	tests := []struct {
		name  string
		scope Scope
		view  TechnicianView
		want  bool
	}{
		{"own profile", Scope{OwnerID: techID}, onTeam, true},
		{"someone else's profile", Scope{OwnerID: types.NewID()}, onTeam, false},
		{"team member", Scope{TeamOf: supID}, onTeam, true},
		{"other team", Scope{TeamOf: types.NewID()}, onTeam, false},
		{"unassigned excluded by default", Scope{TeamOf: supID}, unassigned, false},
		{"unassigned admitted for claiming", Scope{TeamOf: supID, IncludeUnassigned: true}, unassigned, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scope.MatchesTechnician(tt.view); got != tt.want {
				t.Errorf("MatchesTechnician() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSameTeam(t *testing.T) {
	supID := types.NewID()
	profile := TechnicianView{UserID: types.NewID(), SupervisorID: supID}
	unassigned := TechnicianView{UserID: types.NewID()}

	tests := []struct {
		name    string
		id      Identity
		profile TechnicianView
		want    bool
	}{
		{"admin over anyone", Identity{UserID: types.NewID(), Role: RoleAdmin}, profile, true},
		{"repair over anyone", Identity{UserID: types.NewID(), Role: RoleRepair}, profile, true},
		{"supervisor over own team", Identity{UserID: supID, Role: RoleSupervisor}, profile, true},
		{"supervisor over other team", Identity{UserID: types.NewID(), Role: RoleSupervisor}, profile, false},
		{"supervisor over unassigned", Identity{UserID: supID, Role: RoleSupervisor}, unassigned, false},
		{"tech over own profile", Identity{UserID: profile.UserID, Role: RoleTech}, profile, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameTeam(tt.id, tt.profile); got != tt.want {
				t.Errorf("SameTeam() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"tech", "supervisor", "repair", "admin"} {
		if _, err := ParseRole(valid); err != nil {
			t.Errorf("ParseRole(%q) unexpected error: %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "Tech", "manager", "superadmin"} {
		if _, err := ParseRole(invalid); err == nil {
			t.Errorf("ParseRole(%q) should fail", invalid)
		}
	}
}
