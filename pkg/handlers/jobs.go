package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/freightdesk/linkage-engine/pkg/apperrors"
	"github.com/freightdesk/linkage-engine/pkg/services"
)

// JobsHandler triggers batch operations: sweeping unlinked messages,
// backfilling shipments, and repairing cross-thread links.
type JobsHandler struct {
	linkService services.LinkService
	backfill    services.BackfillService
	logger      *zap.Logger
}

// NewJobsHandler creates a new JobsHandler.
func NewJobsHandler(linkService services.LinkService, backfill services.BackfillService, logger *zap.Logger) *JobsHandler {
	return &JobsHandler{
		linkService: linkService,
		backfill:    backfill,
		logger:      logger,
	}
}

// RegisterRoutes registers the jobs handler's routes on the given mux.
func (h *JobsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/jobs/process-unlinked", h.ProcessUnlinked)
	mux.HandleFunc("POST /api/jobs/backfill", h.BackfillAll)
	mux.HandleFunc("POST /api/shipments/{sid}/backfill", h.BackfillShipment)
	mux.HandleFunc("POST /api/jobs/repair-cross-links", h.RepairCrossLinks)
}

// ProcessUnlinked handles POST /api/jobs/process-unlinked.
func (h *JobsHandler) ProcessUnlinked(w http.ResponseWriter, r *http.Request) {
	counts, err := h.linkService.ProcessUnlinkedMessages(r.Context())
	if err != nil {
		h.logger.Error("Failed to process unlinked messages", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to process unlinked messages")
		return
	}

	if err := WriteJSON(w, http.StatusOK, counts); err != nil {
		h.logger.Error("Failed to encode batch response", zap.Error(err))
	}
}

// BackfillAll handles POST /api/jobs/backfill.
func (h *JobsHandler) BackfillAll(w http.ResponseWriter, r *http.Request) {
	counts, err := h.backfill.BackfillAll(r.Context())
	if err != nil {
		h.logger.Error("Failed to backfill shipments", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to backfill shipments")
		return
	}

	if err := WriteJSON(w, http.StatusOK, counts); err != nil {
		h.logger.Error("Failed to encode batch response", zap.Error(err))
	}
}

// BackfillShipment handles POST /api/shipments/{sid}/backfill.
// Called by the carrier-confirmation process right after it creates a
// shipment, since the shipment's documents typically arrived first.
func (h *JobsHandler) BackfillShipment(w http.ResponseWriter, r *http.Request) {
	shipmentID, ok := parseUUID(w, r, "sid")
	if !ok {
		return
	}

	counts, err := h.backfill.LinkRelatedMessages(r.Context(), shipmentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrShipmentMissing) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "shipment not found")
			return
		}
		h.logger.Error("Failed to backfill shipment",
			zap.String("shipment_id", shipmentID.String()), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to backfill shipment")
		return
	}

	if err := WriteJSON(w, http.StatusOK, counts); err != nil {
		h.logger.Error("Failed to encode batch response", zap.Error(err))
	}
}

// RepairCrossLinks handles POST /api/jobs/repair-cross-links.
// Pass dry_run=true to get the report without touching any links, and
// limit to cap how many reply links are examined.
func (h *JobsHandler) RepairCrossLinks(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("dry_run") == "true"
	limit := queryInt(r, "limit", 0)

	report, err := h.backfill.RepairCrossLinks(r.Context(), dryRun, limit)
	if err != nil {
		h.logger.Error("Failed to repair cross links", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to repair cross links")
		return
	}

	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to encode repair response", zap.Error(err))
	}
}
