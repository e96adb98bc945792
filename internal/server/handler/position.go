package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kolwager/kolwager/internal/domain"
)

// PositionService defines the methods that the position handler requires from
// the service layer.
type PositionService interface {
	ListForParticipant(ctx context.Context, participant string) ([]domain.EnrichedPosition, error)
	Stats(ctx context.Context, participant string) (domain.ParticipantStats, error)
}

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and logger.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger,
	}
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []domain.EnrichedPosition `json:"positions"`
}

// ListPositions returns all positions for a participant, enriched with
// current valuations.
// GET /api/positions?participant=...
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	participant := r.URL.Query().Get("participant")
	if participant == "" {
		writeError(w, http.StatusBadRequest, "participant query parameter required")
		return
	}

	positions, err := h.positions.ListForParticipant(r.Context(), participant)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("participant", participant),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	if positions == nil {
		positions = []domain.EnrichedPosition{}
	}

	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// GetStats returns aggregate wagering statistics for a participant.
// GET /api/participants/{id}/stats
func (h *PositionHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	participant := pathParam(r, "id")
	if participant == "" {
		writeError(w, http.StatusBadRequest, "missing participant id")
		return
	}

	stats, err := h.positions.Stats(r.Context(), participant)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "participant not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: participant stats failed",
			slog.String("participant", participant),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
