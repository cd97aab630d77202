package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/haven-crisis-platform/internal/comms"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// ChannelHandler exposes the secure channel message surface to participants.
type ChannelHandler struct {
	channels *comms.Service
	logger   *logging.Logger
}

// NewChannelHandler creates the channel handler.
func NewChannelHandler(channels *comms.Service, logger *logging.Logger) *ChannelHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ChannelHandler{channels: channels, logger: logger.WithComponent("http")}
}

type sendMessageRequest struct {
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
}

// SendMessage posts a message into a secure channel.
// Route: POST /v1/channels/{channelID}/messages
func (h *ChannelHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SenderID == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "sender_id and content are required")
		return
	}

	msg, err := h.channels.SendMessage(r.Context(), channelID, req.SenderID, req.Content)
	if err != nil {
		h.writeChannelError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message_id": msg.ID,
		"sent_at":    msg.SentAt,
	})
}

// Transcript returns the decrypted message history for a participant.
// Route: GET /v1/channels/{channelID}/transcript?reader_id=...
func (h *ChannelHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	readerID := r.URL.Query().Get("reader_id")
	if readerID == "" {
		writeError(w, http.StatusBadRequest, "reader_id is required")
		return
	}

	messages, err := h.channels.Transcript(r.Context(), channelID, readerID)
	if err != nil {
		h.writeChannelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type endChannelRequest struct {
	RequesterID string `json:"requester_id"`
}

// End closes a channel.
// Route: POST /v1/channels/{channelID}/end
func (h *ChannelHandler) End(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	var req endChannelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.channels.End(r.Context(), channelID, req.RequesterID); err != nil {
		h.writeChannelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func (h *ChannelHandler) writeChannelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, comms.ErrChannelNotFound):
		writeError(w, http.StatusNotFound, "channel not found")
	case errors.Is(err, comms.ErrChannelExpired):
		writeError(w, http.StatusGone, "channel expired")
	case errors.Is(err, comms.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	default:
		h.logger.Error("channel operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "channel operation failed")
	}
}
