package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kolwager/kolwager/internal/domain"
)

// StakeService defines the methods that the stake handler requires from the
// service layer.
type StakeService interface {
	PlaceStake(ctx context.Context, marketID, participant string, side domain.Side, amount float64) (domain.Market, domain.Position, error)
}

// StakeHandler serves stake-placement HTTP endpoints.
type StakeHandler struct {
	stakes StakeService
	logger *slog.Logger
}

// NewStakeHandler creates a StakeHandler with the given service and logger.
func NewStakeHandler(stakes StakeService, logger *slog.Logger) *StakeHandler {
	return &StakeHandler{
		stakes: stakes,
		logger: logger,
	}
}

// stakeRequest is the JSON body for placing a stake.
type stakeRequest struct {
	Participant string      `json:"participant"`
	Side        domain.Side `json:"side"`
	Amount      float64     `json:"amount"`
}

// stakeResponse returns the updated position along with the post-stake market
// state so clients can refresh prices without a second round trip.
type stakeResponse struct {
	Position domain.Position `json:"position"`
	Market   domain.Market   `json:"market"`
	Prices   domain.Quote    `json:"prices"`
}

// PlaceStake places a stake on one side of a market.
// POST /api/markets/{id}/stakes
func (h *StakeHandler) PlaceStake(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req stakeRequest
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
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	market, position, err := h.stakes.PlaceStake(r.Context(), marketID, req.Participant, req.Side, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "market not found")
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrInvalidState):
			writeError(w, http.StatusConflict, "market is not accepting stakes")
		case errors.Is(err, domain.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
		default:
			h.logger.ErrorContext(r.Context(), "handler: place stake failed",
				slog.String("market_id", marketID),
				slog.String("participant", req.Participant),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to place stake")
		}
		return
	}

	writeJSON(w, http.StatusCreated, stakeResponse{
		Position: position,
		Market:   market,
		Prices:   market.Quote(),
	})
}
