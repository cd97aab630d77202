package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/haven-crisis-platform/internal/http/middleware"
	"github.com/wolfman30/haven-crisis-platform/internal/safety"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// SafetyHandler exposes safety statistics and the alert workflow.
type SafetyHandler struct {
	engine  *safety.Engine
	monitor *safety.Monitor
	alerts  safety.AlertStore
	logger  *logging.Logger
}

// NewSafetyHandler creates the safety handler.
func NewSafetyHandler(engine *safety.Engine, monitor *safety.Monitor, alerts safety.AlertStore, logger *logging.Logger) *SafetyHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SafetyHandler{engine: engine, monitor: monitor, alerts: alerts, logger: logger.WithComponent("http")}
}

// Stats computes a fresh safety snapshot.
// Route: GET /admin/safety/stats
func (h *SafetyHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.monitor.Compute(r.Context())
	if err != nil {
		h.logger.Error("safety stats computation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "stats computation failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListAlerts returns alerts raised within the lookback window (default 24h).
// Route: GET /admin/alerts?hours=24
func (h *SafetyHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = parsed
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	alerts, err := h.alerts.ListSince(r.Context(), since)
	if err != nil {
		h.logger.Error("alert listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "alert listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// Acknowledge marks an alert as seen by the calling operator.
// Route: POST /admin/alerts/{alertID}/ack
func (h *SafetyHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Acknowledge)
}

// ResolveAlert closes out an alert.
// Route: POST /admin/alerts/{alertID}/resolve
func (h *SafetyHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.ResolveAlert)
}

func (h *SafetyHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, by string) (*safety.Alert, error)) {
	alertID := chi.URLParam(r, "alertID")
	by := "operator"
	if claims, ok := middleware.OperatorClaimsFromContext(r.Context()); ok && claims.Subject != "" {
		by = claims.Subject
	}

	alert, err := fn(r.Context(), alertID, by)
	if err != nil {
		if errors.Is(err, safety.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		h.logger.Error("alert transition failed", "error", err, "alert_id", alertID)
		writeError(w, http.StatusInternalServerError, "alert transition failed")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}
