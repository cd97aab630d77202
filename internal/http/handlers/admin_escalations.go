package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/haven-crisis-platform/internal/crisis"
	"github.com/wolfman30/haven-crisis-platform/internal/escalation"
	"github.com/wolfman30/haven-crisis-platform/internal/http/middleware"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// EscalationHandler exposes escalation records and operator resolution.
type EscalationHandler struct {
	store  escalation.RecordStore
	crisis *crisis.Service
	logger *logging.Logger
}

// NewEscalationHandler creates the escalation handler.
func NewEscalationHandler(store escalation.RecordStore, svc *crisis.Service, logger *logging.Logger) *EscalationHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &EscalationHandler{store: store, crisis: svc, logger: logger.WithComponent("http")}
}

// List returns all escalation records.
// Route: GET /admin/escalations
func (h *EscalationHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("escalation listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "escalation listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"escalations": records})
}

// Get returns one escalation record.
// Route: GET /admin/escalations/{escalationID}
func (h *EscalationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "escalationID")
	rec, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, escalation.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "escalation not found")
			return
		}
		h.logger.Error("escalation lookup failed", "error", err, "escalation_id", id)
		writeError(w, http.StatusInternalServerError, "escalation lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type resolveEscalationRequest struct {
	Outcome string `json:"outcome"`
}

// Resolve closes an escalation on operator authority. Resolution always wins
// over whatever the automated run is doing.
// Route: POST /admin/escalations/{escalationID}/resolve
func (h *EscalationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "escalationID")
	var req resolveEscalationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Outcome == "" {
		writeError(w, http.StatusBadRequest, "outcome is required")
		return
	}

	actor := "operator"
	if claims, ok := middleware.OperatorClaimsFromContext(r.Context()); ok && claims.Subject != "" {
		actor = claims.Subject
	}

	rec, err := h.crisis.Resolve(r.Context(), id, req.Outcome, actor)
	if err != nil {
		switch {
		case errors.Is(err, escalation.ErrRecordNotFound):
			writeError(w, http.StatusNotFound, "escalation not found")
		case errors.Is(err, escalation.ErrTerminal):
			writeError(w, http.StatusConflict, "escalation already terminal")
		default:
			h.logger.Error("escalation resolution failed", "error", err, "escalation_id", id)
			writeError(w, http.StatusInternalServerError, "escalation resolution failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
