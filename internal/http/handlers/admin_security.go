package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/haven-crisis-platform/internal/comms"
	"github.com/wolfman30/haven-crisis-platform/internal/compliance"
	"github.com/wolfman30/haven-crisis-platform/internal/http/middleware"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// SecurityHandler covers the supervisor-only surface: key rotation, emergency
// channel access and the audit trail.
type SecurityHandler struct {
	channels *comms.Service
	audit    *compliance.AuditService
	logger   *logging.Logger
}

// NewSecurityHandler creates the security handler. audit may be nil when no
// database is configured.
func NewSecurityHandler(channels *comms.Service, audit *compliance.AuditService, logger *logging.Logger) *SecurityHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SecurityHandler{channels: channels, audit: audit, logger: logger.WithComponent("http")}
}

// RotateKeys rotates the channel encryption keyring. Existing messages stay
// readable under their original key versions.
// Route: POST /admin/keys/rotate
func (h *SecurityHandler) RotateKeys(w http.ResponseWriter, r *http.Request) {
	keyID, err := h.channels.RotateKeys(r.Context())
	if err != nil {
		h.logger.Error("key rotation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "key rotation failed")
		return
	}

	actor := actorFrom(r)
	if h.audit != nil {
		if err := h.audit.LogKeyRotated(r.Context(), actor, keyID); err != nil {
			h.logger.Error("key rotation audit write failed", "error", err)
		}
	}
	h.logger.Info("channel keys rotated", "key_id", keyID, "actor", actor)
	writeJSON(w, http.StatusOK, map[string]string{"key_id": keyID})
}

type emergencyAccessRequest struct {
	Reason string `json:"reason"`
}

// EmergencyAccess grants the calling supervisor read access to a channel.
// Route: POST /admin/channels/{channelID}/emergency-access
func (h *SecurityHandler) EmergencyAccess(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	var req emergencyAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	actor := actorFrom(r)
	if err := h.channels.EmergencyAccess(r.Context(), channelID, actor, req.Reason); err != nil {
		if errors.Is(err, comms.ErrChannelNotFound) {
			writeError(w, http.StatusNotFound, "channel not found")
			return
		}
		h.logger.Error("emergency access failed", "error", err, "channel_id", channelID)
		writeError(w, http.StatusInternalServerError, "emergency access failed")
		return
	}

	if h.audit != nil {
		ch, err := h.channels.Get(r.Context(), channelID)
		userID := ""
		if err == nil {
			for _, p := range ch.Participants {
				if p.Role == comms.RoleUser {
					userID = p.ID
					break
				}
			}
		}
		if err := h.audit.LogEmergencyAccess(r.Context(), userID, channelID, actor, req.Reason); err != nil {
			h.logger.Error("emergency access audit write failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "granted", "actor": actor})
}

// QueryAudit searches the audit trail for a user.
// Route: GET /admin/audit?user_id=...&limit=100
func (h *SecurityHandler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit store not configured")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	events, err := h.audit.QueryEvents(r.Context(), compliance.AuditFilter{
		UserID:    userID,
		EventType: compliance.AuditEventType(r.URL.Query().Get("event_type")),
		Limit:     100,
	})
	if err != nil {
		h.logger.Error("audit query failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func actorFrom(r *http.Request) string {
	if claims, ok := middleware.OperatorClaimsFromContext(r.Context()); ok && claims.Subject != "" {
		return claims.Subject
	}
	return "operator"
}
