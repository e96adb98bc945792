package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kolwager/kolwager/internal/domain"
)

// SettlementService defines the methods that the settlement handler requires
// from the service layer.
type SettlementService interface {
	GetByMarket(ctx context.Context, marketID string) (domain.Settlement, error)
	Claim(ctx context.Context, marketID, participant string, side domain.Side) (float64, error)
}

// SettlementHandler serves settlement and payout-claim HTTP endpoints.
type SettlementHandler struct {
	settlements SettlementService
	logger      *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler with the given service and
// logger.
func NewSettlementHandler(settlements SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		settlements: settlements,
		logger:      logger,
	}
}

// GetSettlement returns the settlement record for a resolved market.
// GET /api/markets/{id}/settlement
func (h *SettlementHandler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	settlement, err := h.settlements.GetByMarket(r.Context(), marketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "settlement not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get settlement failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get settlement")
		return
	}

	writeJSON(w, http.StatusOK, settlement)
}

// claimRequest is the JSON body for claiming a payout.
type claimRequest struct {
	Participant string      `json:"participant"`
	Side        domain.Side `json:"side"`
}

// claimResponse confirms a claimed payout.
type claimResponse struct {
	MarketID    string  `json:"market_id"`
	Participant string  `json:"participant"`
	Amount      float64 `json:"amount"`
}

// ClaimPayout marks a participant's payout as claimed and returns the amount.
// POST /api/markets/{id}/claim
func (h *SettlementHandler) ClaimPayout(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Participant == "" {
		writeError(w, http.StatusBadRequest, "participant is required")
		return
	}
	if !req.Side.Valid() {
		writeError(w, http.StatusBadRequest, "side must be yes or no")
		return
	}

	amount, err := h.settlements.Claim(r.Context(), marketID, req.Participant, req.Side)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "payout not found")
		case errors.Is(err, domain.ErrAlreadyClaimed):
			writeError(w, http.StatusConflict, "payout already claimed")
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.ErrorContext(r.Context(), "handler: claim payout failed",
				slog.String("market_id", marketID),
				slog.String("participant", req.Participant),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to claim payout")
		}
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{
		MarketID:    marketID,
		Participant: req.Participant,
		Amount:      amount,
	})
}
