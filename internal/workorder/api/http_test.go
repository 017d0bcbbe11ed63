package api

import (
	"context"
	"testing"

	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/errors"
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

type fakeRoster struct {
	techs map[types.ID]authz.TechnicianView
}

func (f *fakeRoster) TechnicianView(_ context.Context, userID types.ID) (authz.TechnicianView, error) {
	v, ok := f.techs[userID]
	if !ok {
		return authz.TechnicianView{}, errors.NotFound("technician", userID.String())
	}
	return v, nil
}

func (f *fakeRoster) TechnicianExists(_ context.Context, id types.ID) (bool, error) {
	_, ok := f.techs[id]
	return ok, nil
}

// Assignments are owned by technician accounts: scheduling or reassigning
// work to a supervisor or admin user is rejected before it reaches storage.
func TestRequireTechnicianRejectsNonTechAccounts(t *testing.T) {
	techID := types.NewID()
	roster := &fakeRoster{techs: map[types.ID]authz.TechnicianView{
		techID: {UserID: techID, Active: true},
	}}
	h := NewHandler(nil, roster, nil)

	if err := h.requireTechnician(context.Background(), techID); err != nil {
		t.Fatalf("expected technician account to pass, got %v", err)
	}

	err := h.requireTechnician(context.Background(), types.NewID())
	if err == nil {
		t.Fatal("expected a non-technician target to be rejected")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("expected AppError, got %T (%v)", err, err)
	}
	if appErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", appErr.Code)
	}
	if appErr.Details["technician_id"] == "" {
		t.Error("expected the denial to name technician_id")
	}
}
