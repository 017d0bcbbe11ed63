package property

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/auth"
	"github.com/zerocool-source/apiV2/internal/shared/errors"
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

// RegionLookup resolves a user's home region, empty when unset
type RegionLookup interface {
	UserRegion(ctx context.Context, userID types.ID) (types.Region, error)
}

// Handler provides HTTP handlers for properties
type Handler struct {
	repo    *Repository
	regions RegionLookup
}

// NewHandler creates a new property handler
func NewHandler(repo *Repository, regions RegionLookup) *Handler {
	return &Handler{repo: repo, regions: regions}
}

// Routes registers the property routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListProperties)
	r.With(auth.RequireRoles(authz.RoleAdmin)).Post("/", h.CreateProperty)
	r.Get("/{propertyID}", h.GetProperty)

	return r
}

type CreatePropertyRequest struct {
	Address string `json:"address"`
	Region  string `json:"region,omitempty"`
}

// CreateProperty adds a property. Admin only; field service records
// normally arrive through the legacy import.
func (h *Handler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	var req CreatePropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Address == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"address": "address is required",
		}))
		return
	}

	var region types.Region
	if req.Region != "" {
		var err error
		region, err = types.ParseRegion(req.Region)
		if err != nil {
			writeError(w, errors.Validation("validation failed", map[string]string{
				"region": err.Error(),
			}))
			return
		}
	}

	p := &Property{
		ID:      types.NewID(),
		Address: req.Address,
		Region:  region,
	}

	if err := h.repo.CreateProperty(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// GetProperty fetches one property, scoped to the caller
func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentity(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "propertyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid property ID"))
		return
	}

	scope, err := h.resolveScope(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.repo.GetProperty(r.Context(), scope, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// ListProperties lists properties within the caller's scope
func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentity(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	scope, err := h.resolveScope(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}

	properties, total, err := h.repo.ListProperties(r.Context(), scope, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  properties,
		"total": total,
	})
}

// resolveScope computes the property scope. Supervisors get their region
// half of the union from their user record; no region just narrows the
// union to team-serviced properties.
func (h *Handler) resolveScope(ctx context.Context, identity authz.Identity) (authz.Scope, error) {
	if identity.Role != authz.RoleSupervisor {
		return authz.ResolveReadScope(identity, authz.ResourceProperty, nil), nil
	}

	region, err := h.regions.UserRegion(ctx, identity.UserID)
	if err != nil {
		return authz.Scope{}, err
	}
	self := &authz.TechnicianView{UserID: identity.UserID, Region: region}
	return authz.ResolveReadScope(identity, authz.ResourceProperty, self), nil
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	var filter ListFilter
	q := r.URL.Query()

	if reg := q.Get("region"); reg != "" {
		region, err := types.ParseRegion(reg)
		if err != nil {
			return filter, errors.BadRequest("invalid region filter")
		}
		filter.Region = &region
	}
	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil {
			return filter, errors.BadRequest("invalid limit")
		}
		filter.Limit = limit
	}
	if o := q.Get("offset"); o != "" {
		offset, err := strconv.Atoi(o)
		if err != nil {
			return filter, errors.BadRequest("invalid offset")
		}
		filter.Offset = offset
	}

	return filter, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
