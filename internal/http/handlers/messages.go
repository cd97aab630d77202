package handlers

import (
	"net/http"

	"github.com/wolfman30/haven-crisis-platform/internal/crisis"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// MessageHandler exposes the inbound message path: every user message is run
// through the crisis service.
type MessageHandler struct {
	crisis *crisis.Service
	logger *logging.Logger
}

// NewMessageHandler creates the message handler.
func NewMessageHandler(svc *crisis.Service, logger *logging.Logger) *MessageHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &MessageHandler{crisis: svc, logger: logger.WithComponent("http")}
}

// HandleMessage assesses a message and escalates when warranted.
// Route: POST /v1/messages
func (h *MessageHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req crisis.MessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "user_id and message are required")
		return
	}

	result, err := h.crisis.HandleMessage(r.Context(), req)
	if err != nil {
		h.logger.Error("message handling failed", "error", err, "user_id", req.UserID)
		writeError(w, http.StatusInternalServerError, "message handling failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
