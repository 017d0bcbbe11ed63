package technician

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/auth"
	"github.com/zerocool-source/apiV2/internal/shared/errors"
	"github.com/zerocool-source/apiV2/internal/shared/metrics"
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

// Handler provides HTTP handlers for the technician roster
type Handler struct {
	repo *Repository
}

// NewHandler creates a new technician handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the technician routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListTechnicians)
	r.With(auth.RequireRoles(authz.RoleAdmin)).Post("/", h.CreateTechnician)

	r.Route("/{technicianID}", func(r chi.Router) {
		r.Get("/", h.GetTechnician)
		r.Patch("/", h.UpdateTechnician)
	})

	return r
}

type CreateTechnicianRequest struct {
	UserID       types.ID `json:"user_id"`
	SupervisorID types.ID `json:"supervisor_id,omitempty"`
	Name         string   `json:"name"`
	Phone        string   `json:"phone,omitempty"`
	TruckID      string   `json:"truck_id,omitempty"`
	Region       string   `json:"region"`
}

type UpdateTechnicianRequest struct {
	Name         *string   `json:"name,omitempty"`
	Phone        *string   `json:"phone,omitempty"`
	TruckID      *string   `json:"truck_id,omitempty"`
	Active       *bool     `json:"active,omitempty"`
	SupervisorID *types.ID `json:"supervisor_id,omitempty"`
}

// CreateTechnician adds a technician to the roster. Admin only.
func (h *Handler) CreateTechnician(w http.ResponseWriter, r *http.Request) {
	var req CreateTechnicianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"name": "name is required",
		}))
		return
	}
	region, err := types.ParseRegion(req.Region)
	if err != nil {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"region": err.Error(),
		}))
		return
	}

	if !req.SupervisorID.IsZero() {
		ok, err := h.repo.SupervisorExists(r.Context(), req.SupervisorID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !ok {
			writeError(w, errors.Validation("validation failed", map[string]string{
				"supervisor_id": "must reference a supervisor",
			}))
			return
		}
	}

	profile := &Profile{
		UserID:       req.UserID,
		SupervisorID: req.SupervisorID,
		Name:         req.Name,
		Phone:        req.Phone,
		TruckID:      req.TruckID,
		Region:       region,
		Active:       true,
	}

	if err := h.repo.CreateProfile(r.Context(), profile); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

// GetTechnician fetches one roster entry, scoped to the caller
func (h *Handler) GetTechnician(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentity(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "technicianID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid technician ID"))
		return
	}

	profile, err := h.repo.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	scope := authz.ResolveReadScope(identity, authz.ResourceTechnician, nil)
	if !scope.MatchesTechnician(View(profile)) {
		writeError(w, errors.NotFound("technician", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// ListTechnicians lists roster entries within the caller's scope
func (h *Handler) ListTechnicians(w http.ResponseWriter, r *http.Request) {
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

	scope := authz.ResolveReadScope(identity, authz.ResourceTechnician, nil)
	profiles, total, err := h.repo.ListProfiles(r.Context(), scope, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  profiles,
		"total": total,
	})
}

// UpdateTechnician applies a partial roster update through the
// authorization gate
func (h *Handler) UpdateTechnician(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentity(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "technicianID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid technician ID"))
		return
	}

	var req UpdateTechnicianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	profile, err := h.repo.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	change, params := buildChange(req)

	if err := authz.AuthorizeTechnicianMutation(identity, View(profile), change); err != nil {
		metrics.RecordAuthorizationDecision(string(authz.ResourceTechnician), "update", false)
		writeError(w, err)
		return
	}
	metrics.RecordAuthorizationDecision(string(authz.ResourceTechnician), "update", true)

	// Reassignment targets must actually be supervisors
	if params.SupervisorID != nil && !params.SupervisorID.IsZero() {
		ok, err := h.repo.SupervisorExists(r.Context(), *params.SupervisorID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !ok {
			writeError(w, errors.Validation("validation failed", map[string]string{
				"supervisor_id": "must reference a supervisor",
			}))
			return
		}
	}

	updated, err := h.repo.UpdateProfile(r.Context(), id, params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func buildChange(req UpdateTechnicianRequest) (authz.TechnicianChange, UpdateParams) {
	var change authz.TechnicianChange
	var params UpdateParams

	if req.Name != nil {
		change.Fields = append(change.Fields, authz.FieldName)
		params.Name = req.Name
	}
	if req.Phone != nil {
		change.Fields = append(change.Fields, authz.FieldPhone)
		params.Phone = req.Phone
	}
	if req.TruckID != nil {
		change.Fields = append(change.Fields, authz.FieldTruckID)
		params.TruckID = req.TruckID
	}
	if req.Active != nil {
		change.Fields = append(change.Fields, authz.FieldActive)
		params.Active = req.Active
	}
	if req.SupervisorID != nil {
		change.Fields = append(change.Fields, authz.FieldSupervisorID)
		change.SupervisorID = *req.SupervisorID
		if req.SupervisorID.IsZero() {
			params.ClearSupervisor = true
		} else {
			params.SupervisorID = req.SupervisorID
		}
	}

	return change, params
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
	if a := q.Get("active"); a != "" {
		active, err := strconv.ParseBool(a)
		if err != nil {
			return filter, errors.BadRequest("invalid active filter")
		}
		filter.Active = &active
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
