package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/haven-crisis-platform/internal/responders"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// ResponderHandler manages the professional responder roster.
type ResponderHandler struct {
	repo   responders.Repository
	logger *logging.Logger
}

// NewResponderHandler creates the responder handler.
func NewResponderHandler(repo responders.Repository, logger *logging.Logger) *ResponderHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ResponderHandler{repo: repo, logger: logger.WithComponent("http")}
}

// List returns all active professionals.
// Route: GET /admin/professionals
func (h *ResponderHandler) List(w http.ResponseWriter, r *http.Request) {
	pros, err := h.repo.ListActive(r.Context())
	if err != nil {
		h.logger.Error("responder listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "responder listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"professionals": pros})
}

// Upsert creates or replaces a professional's roster entry.
// Route: PUT /admin/professionals
func (h *ResponderHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var p responders.Professional
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.ID == "" || p.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required")
		return
	}
	if err := h.repo.Upsert(r.Context(), &p); err != nil {
		h.logger.Error("responder upsert failed", "error", err, "responder_id", p.ID)
		writeError(w, http.StatusInternalServerError, "responder upsert failed")
		return
	}
	writeJSON(w, http.StatusOK, &p)
}

type availabilityRequest struct {
	Availability responders.Availability `json:"availability"`
}

// UpdateAvailability lets a responder or operator flip availability.
// Route: PATCH /admin/professionals/{professionalID}/availability
func (h *ResponderHandler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "professionalID")
	var req availabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Availability {
	case responders.AvailabilityAvailable, responders.AvailabilityBusy, responders.AvailabilityOffline:
	default:
		writeError(w, http.StatusBadRequest, "availability must be available, busy or offline")
		return
	}

	if err := h.repo.UpdateAvailability(r.Context(), id, req.Availability); err != nil {
		if errors.Is(err, responders.ErrNotFound) {
			writeError(w, http.StatusNotFound, "professional not found")
			return
		}
		h.logger.Error("availability update failed", "error", err, "responder_id", id)
		writeError(w, http.StatusInternalServerError, "availability update failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
