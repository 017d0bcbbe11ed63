package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/auth"
	"github.com/zerocool-source/apiV2/internal/shared/errors"
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

// Handler provides HTTP handlers for the audit trail
type Handler struct {
	repo *Repository
}

// NewHandler creates a new audit handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the audit routes. Technicians have no audit
// visibility.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRoles(authz.RoleSupervisor, authz.RoleRepair, authz.RoleAdmin))

	r.Get("/", h.ListEntries)

	return r
}

// ListEntries lists audit entries within the caller's scope, newest first.
// A supervisor's view of the trail follows their work order visibility:
// their own actions, their team's, and actions touching their team's
// records. Repair follows its own assigned work; admins see everything.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
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
	entries, total, err := h.repo.List(r.Context(), scope, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  entries,
		"total": total,
	})
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	var filter ListFilter
	q := r.URL.Query()

	filter.Action = q.Get("action")
	filter.ResourceType = q.Get("resource_type")

	if rid := q.Get("resource_id"); rid != "" {
		id, err := types.ParseID(rid)
		if err != nil {
			return filter, errors.BadRequest("invalid resource_id filter")
		}
		filter.ResourceID = &id
	}
	if aid := q.Get("actor_id"); aid != "" {
		id, err := types.ParseID(aid)
		if err != nil {
			return filter, errors.BadRequest("invalid actor_id filter")
		}
		filter.ActorID = &id
	}
	if f := q.Get("from"); f != "" {
		from, err := time.Parse(time.RFC3339, f)
		if err != nil {
			return filter, errors.BadRequest("invalid from filter")
		}
		filter.From = &from
	}
	if t := q.Get("to"); t != "" {
		to, err := time.Parse(time.RFC3339, t)
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
