package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/haven-crisis-platform/internal/escalation"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// ProtocolHandler manages the escalation protocol catalog.
type ProtocolHandler struct {
	catalog *escalation.Catalog
	logger  *logging.Logger
}

// NewProtocolHandler creates the protocol handler.
func NewProtocolHandler(catalog *escalation.Catalog, logger *logging.Logger) *ProtocolHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ProtocolHandler{catalog: catalog, logger: logger.WithComponent("http")}
}

// List returns all active protocols.
// Route: GET /admin/protocols
func (h *ProtocolHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"protocols": h.catalog.ListActive()})
}

// Get returns one protocol by id.
// Route: GET /admin/protocols/{protocolID}
func (h *ProtocolHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "protocolID")
	protocol, ok := h.catalog.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "protocol not found")
		return
	}
	writeJSON(w, http.StatusOK, protocol)
}

// Upsert validates and registers or replaces a protocol. Changes apply to
// escalations begun after the call; in-flight runs keep their step list.
// Route: PUT /admin/protocols
func (h *ProtocolHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var protocol escalation.Protocol
	if err := decodeJSON(r, &protocol); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.catalog.Update(&protocol); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.logger.Info("protocol updated", "protocol_id", protocol.ID, "priority", protocol.Priority)
	writeJSON(w, http.StatusOK, &protocol)
}
