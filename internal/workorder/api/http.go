package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/auth"
	"github.com/zerocool-source/apiV2/internal/shared/errors"
	"github.com/zerocool-source/apiV2/internal/shared/events"
	"github.com/zerocool-source/apiV2/internal/shared/metrics"
	"github.com/zerocool-source/apiV2/internal/shared/types"
	"github.com/zerocool-source/apiV2/internal/workorder/domain"
	"github.com/zerocool-source/apiV2/internal/workorder/infrastructure"
)

// RosterLookup resolves technician profiles for team and role checks at
// creation and reassignment time
type RosterLookup interface {
	TechnicianView(ctx context.Context, userID types.ID) (authz.TechnicianView, error)
	TechnicianExists(ctx context.Context, id types.ID) (bool, error)
}

// Handler provides HTTP handlers for the work order module
type Handler struct {
	repo   *infrastructure.PostgresRepository
	roster RosterLookup
	bus    *events.Bus
}

// NewHandler creates a new work order handler. The bus may be nil when the
// audit stream is disabled.
func NewHandler(repo *infrastructure.PostgresRepository, roster RosterLookup, bus *events.Bus) *Handler {
	return &Handler{repo: repo, roster: roster, bus: bus}
}

// Routes registers the work order routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListAssignments)
	r.Post("/", h.CreateAssignment)

	r.Route("/{assignmentID}", func(r chi.Router) {
		r.Get("/", h.GetAssignment)
		r.Patch("/", h.UpdateAssignment)
	})

	return r
}

// --- Request/Response types ---

type CreateAssignmentRequest struct {
	PropertyID    types.ID `json:"property_id"`
	TechnicianID  types.ID `json:"technician_id"`
	Priority      string   `json:"priority,omitempty"`
	ScheduledDate string   `json:"scheduled_date"` // YYYY-MM-DD
	Notes         string   `json:"notes,omitempty"`
}

// UpdateAssignmentRequest is a partial update. Absent fields are left
// untouched; which present fields are honored depends on the caller's role.
type UpdateAssignmentRequest struct {
	Status         *string   `json:"status,omitempty"`
	Priority       *string   `json:"priority,omitempty"`
	ScheduledDate  *string   `json:"scheduled_date,omitempty"`
	TechnicianID   *types.ID `json:"technician_id,omitempty"`
	PropertyID     *types.ID `json:"property_id,omitempty"`
	CompletedAt    *string   `json:"completed_at,omitempty"`
	CanceledReason *string   `json:"canceled_reason,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
}

// --- Handlers ---

// CreateAssignment schedules new work. Technicians cannot create work for
// themselves; supervisors only schedule their own team.
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentity(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	if identity.Role == authz.RoleTech {
		metrics.RecordAuthorizationDecision(string(authz.ResourceAssignment), "create", false)
		writeError(w, errors.Forbidden("technicians cannot create assignments"))
		return
	}

	var req CreateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	scheduled, err := time.Parse("2006-01-02", req.ScheduledDate)
	if err != nil {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"scheduled_date": "must be YYYY-MM-DD",
		}))
		return
	}

	priority := domain.PriorityMed
	if req.Priority != "" {
		priority, err = domain.ParsePriority(req.Priority)
		if err != nil {
			writeError(w, errors.Validation("validation failed", map[string]string{
				"priority": "must be one of low, med, high",
			}))
			return
		}
	}

	// Work is owned by a technician account, whoever schedules it
	if err := h.requireTechnician(r.Context(), req.TechnicianID); err != nil {
		writeError(w, err)
		return
	}

	// Supervisors schedule their own team only
	if identity.Role == authz.RoleSupervisor {
		profile, err := h.roster.TechnicianView(r.Context(), req.TechnicianID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !authz.SameTeam(identity, profile) {
			metrics.RecordAuthorizationDecision(string(authz.ResourceAssignment), "create", false)
			writeError(w, errors.Forbidden("technician belongs to another team"))
			return
		}
	}

	assignment, err := domain.New(req.PropertyID, req.TechnicianID, priority, scheduled)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}
	assignment.Notes = req.Notes

	if err := h.repo.CreateAssignment(r.Context(), assignment); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordAuthorizationDecision(string(authz.ResourceAssignment), "create", true)
	metrics.RecordAssignmentCreated(string(assignment.Priority))
	h.publish(r.Context(), identity, domain.EventAssignmentCreated, map[string]any{
		"assignment_id": assignment.ID,
		"property_id":   assignment.PropertyID,
		"technician_id": assignment.TechnicianID,
		"priority":      assignment.Priority,
	})

	writeJSON(w, http.StatusCreated, assignment)
}

// GetAssignment fetches one assignment, scoped to the caller
func (h *Handler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentity(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "assignmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid assignment ID"))
		return
	}

	snap, err := h.repo.GetAssignment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	scope := authz.ResolveReadScope(identity, authz.ResourceAssignment, nil)
	if !scope.MatchesAssignment(authz.AssignmentView{
		TechnicianID:           snap.Assignment.TechnicianID,
		TechnicianSupervisorID: snap.TechnicianSupervisorID,
	}) {
		// Out of scope reads as missing, not as forbidden
		writeError(w, errors.NotFound("assignment", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, snap.Assignment)
}

// ListAssignments lists assignments within the caller's scope
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
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

	scope := authz.ResolveReadScope(identity, authz.ResourceAssignment, nil)
	assignments, total, err := h.repo.ListAssignments(r.Context(), scope, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  assignments,
		"total": total,
	})
}

// UpdateAssignment applies a partial update through the authorization gate
func (h *Handler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentity(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "assignmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid assignment ID"))
		return
	}

	var req UpdateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	change, params, err := buildChange(req)
	if err != nil {
		writeError(w, err)
		return
	}

	snap, err := h.repo.GetAssignment(r.Context(), id)
	if err != nil {
		// Absent and scoped-out are indistinguishable to the caller
		writeError(w, err)
		return
	}

	applied, err := authz.AuthorizeAssignmentMutation(identity, snap, change)
	if err != nil {
		metrics.RecordAuthorizationDecision(string(authz.ResourceAssignment), "update", false)
		writeError(w, err)
		return
	}
	metrics.RecordAuthorizationDecision(string(authz.ResourceAssignment), "update", true)

	// Idempotent re-cancel: nothing to persist
	if applied.NoOp {
		writeJSON(w, http.StatusOK, snap.Assignment)
		return
	}

	// Reassignment targets must be technician accounts
	if params.TechnicianID != nil {
		if err := h.requireTechnician(r.Context(), *params.TechnicianID); err != nil {
			writeError(w, err)
			return
		}
	}

	previous := snap.Assignment.Status
	if sc := applied.StatusChange; sc != nil {
		params.Status = &sc.Status
		params.CompletedAt = sc.CompletedAt
		params.ClearCompleted = sc.ClearCompleted
		params.CanceledAt = sc.CanceledAt
		params.CanceledReason = sc.CanceledReason
	}

	updated, err := h.repo.UpdateAssignment(r.Context(), id, snap.Assignment.Version, params)
	if err != nil {
		writeError(w, err)
		return
	}

	if updated.Status != previous {
		metrics.RecordAssignmentStatusChange(string(previous), string(updated.Status))
		h.publish(r.Context(), identity, domain.EventAssignmentStatusChanged, map[string]any{
			"assignment_id": updated.ID,
			"from":          previous,
			"to":            updated.Status,
		})
	} else if params.TechnicianID != nil {
		h.publish(r.Context(), identity, domain.EventAssignmentReassigned, map[string]any{
			"assignment_id": updated.ID,
			"technician_id": *params.TechnicianID,
		})
	} else {
		h.publish(r.Context(), identity, domain.EventAssignmentUpdated, map[string]any{
			"assignment_id": updated.ID,
		})
	}

	writeJSON(w, http.StatusOK, updated)
}

// requireTechnician verifies the target of an ownership write is a user
// with the tech role. Assignments are owned by technicians; a supervisor
// or admin account never holds work.
func (h *Handler) requireTechnician(ctx context.Context, id types.ID) error {
	exists, err := h.roster.TechnicianExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Validation("validation failed", map[string]string{
			"technician_id": "must reference a technician account",
		})
	}
	return nil
}

// buildChange translates the wire payload into the gate's change plus the
// repository params for the caller-supplied values. Values are validated
// here; whether the role may touch them is the gate's decision.
func buildChange(req UpdateAssignmentRequest) (authz.AssignmentChange, infrastructure.UpdateParams, error) {
	var change authz.AssignmentChange
	var params infrastructure.UpdateParams

	if req.Status != nil {
		status, err := domain.ParseStatus(*req.Status)
		if err != nil {
			return change, params, errors.Validation("validation failed", map[string]string{
				"status": err.Error(),
			})
		}
		change.Fields = append(change.Fields, authz.FieldStatus)
		change.Status = status
	}
	if req.Priority != nil {
		priority, err := domain.ParsePriority(*req.Priority)
		if err != nil {
			return change, params, errors.Validation("validation failed", map[string]string{
				"priority": err.Error(),
			})
		}
		change.Fields = append(change.Fields, authz.FieldPriority)
		params.Priority = &priority
	}
	if req.ScheduledDate != nil {
		scheduled, err := time.Parse("2006-01-02", *req.ScheduledDate)
		if err != nil {
			return change, params, errors.Validation("validation failed", map[string]string{
				"scheduled_date": "must be YYYY-MM-DD",
			})
		}
		change.Fields = append(change.Fields, authz.FieldScheduledDate)
		params.ScheduledDate = &scheduled
	}
	if req.TechnicianID != nil {
		change.Fields = append(change.Fields, authz.FieldTechnicianID)
		params.TechnicianID = req.TechnicianID
	}
	if req.PropertyID != nil {
		change.Fields = append(change.Fields, authz.FieldPropertyID)
		params.PropertyID = req.PropertyID
	}
	if req.CompletedAt != nil {
		completed, err := time.Parse(time.RFC3339, *req.CompletedAt)
		if err != nil {
			return change, params, errors.Validation("validation failed", map[string]string{
				"completed_at": "must be RFC 3339",
			})
		}
		change.Fields = append(change.Fields, authz.FieldCompletedAt)
		params.CompletedAt = &completed
	}
	if req.CanceledReason != nil {
		change.Fields = append(change.Fields, authz.FieldCanceledReason)
		change.CanceledReason = req.CanceledReason
		params.CanceledReason = req.CanceledReason
	}
	if req.Notes != nil {
		change.Fields = append(change.Fields, authz.FieldNotes)
		params.Notes = req.Notes
	}

	return change, params, nil
}

func parseListFilter(r *http.Request) (infrastructure.ListFilter, error) {
	var filter infrastructure.ListFilter
	q := r.URL.Query()

	if s := q.Get("status"); s != "" {
		status, err := domain.ParseStatus(s)
		if err != nil {
			return filter, errors.BadRequest("invalid status filter")
		}
		filter.Status = &status
	}
	if p := q.Get("priority"); p != "" {
		priority, err := domain.ParsePriority(p)
		if err != nil {
			return filter, errors.BadRequest("invalid priority filter")
		}
		filter.Priority = &priority
	}
	if t := q.Get("technician_id"); t != "" {
		id, err := types.ParseID(t)
		if err != nil {
			return filter, errors.BadRequest("invalid technician_id filter")
		}
		filter.TechnicianID = &id
	}
	if p := q.Get("property_id"); p != "" {
		id, err := types.ParseID(p)
		if err != nil {
			return filter, errors.BadRequest("invalid property_id filter")
		}
		filter.PropertyID = &id
	}
	if f := q.Get("from"); f != "" {
		from, err := time.Parse("2006-01-02", f)
		if err != nil {
			return filter, errors.BadRequest("invalid from filter")
		}
		filter.From = &from
	}
	if t := q.Get("to"); t != "" {
		to, err := time.Parse("2006-01-02", t)
		if err != nil {
			return filter, errors.BadRequest("invalid to filter")
		}
		filter.To = &to
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

func (h *Handler) publish(ctx context.Context, identity authz.Identity, eventType string, data map[string]any) {
	if h.bus == nil {
		return
	}
	event := events.NewEvent(eventType, "workorder", data).
		WithActor(identity.UserID, string(identity.Role))
	if err := h.bus.Publish(ctx, event); err != nil {
		// Audit publishing is best-effort; the write already landed
		return
	}
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
