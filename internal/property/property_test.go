package property

import (
	"strings"
	"testing"

	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

func TestPropertyScopeCondition(t *testing.T) {
	owner := types.NewID()
	team := types.NewID()

	t.Run("all is unrestricted", func(t *testing.T) {
		argNum := 1
		args := []interface{}{}
		cond := propertyScopeCondition(authz.Scope{All: true}, &argNum, &args)
		if cond != "" {
			t.Errorf("expected no condition, got %q", cond)
		}
		if len(args) != 0 {
			t.Errorf("expected no args, got %d", len(args))
		}
	})

	t.Run("none is empty set", func(t *testing.T) {
		argNum := 1
		args := []interface{}{}
		cond := propertyScopeCondition(authz.Scope{None: true}, &argNum, &args)
		if cond != "FALSE" {
			t.Errorf("expected FALSE, got %q", cond)
		}
	})

	t.Run("owner filters through own assignments", func(t *testing.T) {
		argNum := 1
		args := []interface{}{}
		cond := propertyScopeCondition(authz.Scope{OwnerID: owner}, &argNum, &args)
		if !strings.Contains(cond, "a.technician_id = $1") {
			t.Errorf("expected technician filter, got %q", cond)
		}
		if len(args) != 1 || args[0] != owner {
			t.Errorf("expected owner arg, got %v", args)
		}
	})

	t.Run("supervisor without region is team only", func(t *testing.T) {
		argNum := 1
		args := []interface{}{}
		cond := propertyScopeCondition(authz.Scope{TeamOf: team}, &argNum, &args)
		if strings.Contains(cond, "p.region") {
			t.Errorf("expected no region clause, got %q", cond)
		}
		if !strings.Contains(cond, "tp.supervisor_id = $1") {
			t.Errorf("expected team clause, got %q", cond)
		}
	})

	t.Run("supervisor with region is a union", func(t *testing.T) {
		argNum := 1
		args := []interface{}{}
		cond := propertyScopeCondition(
			authz.Scope{TeamOf: team, Region: types.RegionNorth}, &argNum, &args,
		)
		if !strings.Contains(cond, "p.region = $2") {
			t.Errorf("expected region clause, got %q", cond)
		}
		if !strings.Contains(cond, " OR ") {
			t.Errorf("expected union, got %q", cond)
		}
		if len(args) != 2 {
			t.Fatalf("expected 2 args, got %d", len(args))
		}
		if args[0] != team || args[1] != types.RegionNorth {
			t.Errorf("unexpected args %v", args)
		}
	})
}
