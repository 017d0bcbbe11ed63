package legacy

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/auth"
	"github.com/zerocool-source/apiV2/internal/shared/errors"
)

// Handler provides HTTP handlers for the legacy import
type Handler struct {
	importer *Importer
}

// NewHandler creates a new legacy import handler
func NewHandler(importer *Importer) *Handler {
	return &Handler{importer: importer}
}

// Routes registers the legacy import routes. Admin only.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRoles(authz.RoleAdmin))

	r.Post("/import", h.RunImport)

	return r
}

// RunImport triggers a synchronous import run
func (h *Handler) RunImport(w http.ResponseWriter, r *http.Request) {
	result, err := h.importer.Run(r.Context())
	if err != nil {
		writeError(w, errors.Wrap(err, "legacy import failed"))
		return
	}

	writeJSON(w, http.StatusOK, result)
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
