package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/freightdesk/linkage-engine/pkg/apperrors"
	"github.com/freightdesk/linkage-engine/pkg/repositories"
	"github.com/freightdesk/linkage-engine/pkg/services"
)

// LinkHandler handles message processing and decision-trail endpoints.
type LinkHandler struct {
	linkService services.LinkService
	auditRepo   repositories.AuditRepository
	conflicts   repositories.ConflictRepository
	logger      *zap.Logger
}

// NewLinkHandler creates a new LinkHandler.
func NewLinkHandler(
	linkService services.LinkService,
	auditRepo repositories.AuditRepository,
	conflicts repositories.ConflictRepository,
	logger *zap.Logger,
) *LinkHandler {
	return &LinkHandler{
		linkService: linkService,
		auditRepo:   auditRepo,
		conflicts:   conflicts,
		logger:      logger,
	}
}

// RegisterRoutes registers the link handler's routes on the given mux.
func (h *LinkHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/messages/{mid}/process", h.ProcessMessage)
	mux.HandleFunc("GET /api/messages/{mid}/audit", h.GetAuditTrail)
	mux.HandleFunc("GET /api/messages/{mid}/conflicts", h.GetConflicts)
}

// ProcessMessage handles POST /api/messages/{mid}/process.
// Runs the full linking decision flow for the message and returns the result.
// Safe to call repeatedly; an already handled message is a no-op.
func (h *LinkHandler) ProcessMessage(w http.ResponseWriter, r *http.Request) {
	messageID, ok := parseUUID(w, r, "mid")
	if !ok {
		return
	}

	result, err := h.linkService.ProcessMessage(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "message not found")
			return
		}
		h.logger.Error("Failed to process message",
			zap.String("message_id", messageID.String()), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to process message")
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode process response", zap.Error(err))
	}
}

// GetAuditTrail handles GET /api/messages/{mid}/audit.
func (h *LinkHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	messageID, ok := parseUUID(w, r, "mid")
	if !ok {
		return
	}

	entries, err := h.auditRepo.ListByMessage(r.Context(), messageID)
	if err != nil {
		h.logger.Error("Failed to list audit entries",
			zap.String("message_id", messageID.String()), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to list audit entries")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": entries}); err != nil {
		h.logger.Error("Failed to encode audit response", zap.Error(err))
	}
}

// GetConflicts handles GET /api/messages/{mid}/conflicts.
func (h *LinkHandler) GetConflicts(w http.ResponseWriter, r *http.Request) {
	messageID, ok := parseUUID(w, r, "mid")
	if !ok {
		return
	}

	conflicts, err := h.conflicts.ListByMessage(r.Context(), messageID)
	if err != nil {
		h.logger.Error("Failed to list conflicts",
			zap.String("message_id", messageID.String()), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to list conflicts")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]interface{}{"conflicts": conflicts}); err != nil {
		h.logger.Error("Failed to encode conflicts response", zap.Error(err))
	}
}

func parseUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(param))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_id", "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}
