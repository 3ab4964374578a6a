package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/freightdesk/linkage-engine/pkg/apperrors"
	"github.com/freightdesk/linkage-engine/pkg/repositories"
	"github.com/freightdesk/linkage-engine/pkg/services"
)

// SuggestionHandler handles the review queue endpoints.
type SuggestionHandler struct {
	linkService services.LinkService
	suggestions repositories.SuggestionRepository
	logger      *zap.Logger
}

// NewSuggestionHandler creates a new SuggestionHandler.
func NewSuggestionHandler(
	linkService services.LinkService,
	suggestions repositories.SuggestionRepository,
	logger *zap.Logger,
) *SuggestionHandler {
	return &SuggestionHandler{
		linkService: linkService,
		suggestions: suggestions,
		logger:      logger,
	}
}

// RegisterRoutes registers the suggestion handler's routes on the given mux.
func (h *SuggestionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/suggestions", h.ListPending)
	mux.HandleFunc("POST /api/suggestions/{sid}/confirm", h.Confirm)
	mux.HandleFunc("POST /api/suggestions/{sid}/reject", h.Reject)
}

// ListPending handles GET /api/suggestions.
func (h *SuggestionHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	pending, err := h.suggestions.ListPending(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list pending suggestions", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to list suggestions")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]interface{}{"suggestions": pending}); err != nil {
		h.logger.Error("Failed to encode suggestions response", zap.Error(err))
	}
}

// Confirm handles POST /api/suggestions/{sid}/confirm.
// Creates a manual link from the suggestion and marks it confirmed.
func (h *SuggestionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	suggestionID, ok := parseUUID(w, r, "sid")
	if !ok {
		return
	}

	link, err := h.linkService.ConfirmSuggestion(r.Context(), suggestionID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "suggestion not found")
		case errors.Is(err, apperrors.ErrInvalidStatus):
			_ = ErrorResponse(w, http.StatusConflict, "already_reviewed", "suggestion is not pending")
		case errors.Is(err, apperrors.ErrAlreadyLinked):
			_ = ErrorResponse(w, http.StatusConflict, "already_linked", "message is linked to another shipment")
		default:
			h.logger.Error("Failed to confirm suggestion",
				zap.String("suggestion_id", suggestionID.String()), zap.Error(err))
			_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to confirm suggestion")
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, link); err != nil {
		h.logger.Error("Failed to encode confirm response", zap.Error(err))
	}
}

// Reject handles POST /api/suggestions/{sid}/reject.
func (h *SuggestionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	suggestionID, ok := parseUUID(w, r, "sid")
	if !ok {
		return
	}

	err := h.linkService.RejectSuggestion(r.Context(), suggestionID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "suggestion not found")
		case errors.Is(err, apperrors.ErrInvalidStatus):
			_ = ErrorResponse(w, http.StatusConflict, "already_reviewed", "suggestion is not pending")
		default:
			h.logger.Error("Failed to reject suggestion",
				zap.String("suggestion_id", suggestionID.String()), zap.Error(err))
			_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to reject suggestion")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
