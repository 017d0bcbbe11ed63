package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/auth"
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

func registerRequest(t *testing.T, role authz.Role) *http.Request {
	t.Helper()
	body := `{"email":"new@example.com","password":"correct-horse","name":"New","role":"admin"}`
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
	ctx := auth.WithIdentity(req.Context(), authz.Identity{UserID: types.NewID(), Role: role})
	return req.WithContext(ctx)
}

func TestRegisterRequiresAdmin(t *testing.T) {
	svc, store := testService()
	router := NewHandler(svc).Routes()

	for _, role := range []authz.Role{authz.RoleTech, authz.RoleSupervisor, authz.RoleRepair} {
		t.Run(string(role), func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, registerRequest(t, role))

			if rec.Code != http.StatusForbidden {
				t.Fatalf("role %s: expected 403, got %d", role, rec.Code)
			}
			if _, exists := store.byEmail["new@example.com"]; exists {
				t.Fatalf("role %s: account was created despite the denial", role)
			}
		})
	}
}

func TestRegisterAllowsAdmin(t *testing.T) {
	svc, store := testService()
	router := NewHandler(svc).Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, registerRequest(t, authz.RoleAdmin))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	u, exists := store.byEmail["new@example.com"]
	if !exists {
		t.Fatal("account was not created")
	}
	if u.Role != authz.RoleAdmin {
		t.Errorf("expected role admin, got %s", u.Role)
	}
}
